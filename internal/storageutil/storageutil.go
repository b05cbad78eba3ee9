// Package storageutil reads and writes LZ4-framed JSON analysis artifacts
// through a blob bucket (file://, gs:// or s3://).
package storageutil

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrObjectNotFound indicates the artifact object does not exist.
var ErrObjectNotFound = errors.New("object not found")

const ioTimeout = 30 * time.Second

// CompressedWrite compresses and writes d as LZ4-framed JSON.
func CompressedWrite(ctx context.Context, b *blob.Bucket, objectName string, d any) error {
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	w, err := b.NewWriter(ctx, objectName, nil)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(w)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	if err := json.NewEncoder(zw).Encode(d); err != nil {
		w.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// UnmarshalCompressed reads an LZ4-framed JSON object into d. A missing
// object surfaces as ErrObjectNotFound.
func UnmarshalCompressed(ctx context.Context, b *blob.Bucket, objectName string, d any) error {
	ctx, cancel := context.WithTimeout(ctx, ioTimeout)
	defer cancel()

	r, err := b.NewReader(ctx, objectName, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrObjectNotFound
		}
		return err
	}
	defer r.Close()
	return json.NewDecoder(lz4.NewReader(r)).Decode(d)
}
