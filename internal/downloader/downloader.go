// Package downloader fetches remote analysis artifacts into the artifact
// bucket before a session opens over them.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"gocloud.dev/blob"
)

const (
	requestTimeout = 60 * time.Second
	retryCount     = 3
	retryBackoff   = 500 * time.Millisecond
)

type Client struct {
	http *httpclient.Client
}

func NewClient() *Client {
	return &Client{
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(requestTimeout),
			httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(retryBackoff, 100*time.Millisecond))),
			httpclient.WithRetryCount(retryCount),
		),
	}
}

// FetchToBucket downloads url and stores the body under objectName. The
// body is copied as-is; the artifact is already LZ4-framed JSON.
func (c *Client) FetchToBucket(ctx context.Context, url string, b *blob.Bucket, objectName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching artifact: unexpected status %d", resp.StatusCode)
	}

	w, err := b.NewWriter(ctx, objectName, nil)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
