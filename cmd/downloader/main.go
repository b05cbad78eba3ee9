// downloader bulk-copies analysis artifacts out of an artifact bucket into a
// local directory, reading object names from stdin one per line. It is a
// maintenance tool for pulling traces down for offline analysis with
// tracelens-mcp.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/tracelens/tracelens/internal/logutil"
)

func fetch(ctx context.Context, bucket *blob.Bucket, root string, objects chan string, wg *sync.WaitGroup) {
	defer wg.Done()

	for objectName := range objects {
		path := filepath.Join(root, filepath.FromSlash(objectName))

		if _, err := os.Stat(path); err == nil {
			// Already fetched on a previous run.
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Error().Err(err).Str("object", objectName).Msg("cannot create directory")
			continue
		}

		r, err := bucket.NewReader(ctx, objectName, nil)
		if err != nil {
			log.Error().Err(err).Str("object", objectName).Msg("cannot open object")
			continue
		}
		f, err := os.Create(path)
		if err != nil {
			r.Close()
			log.Error().Err(err).Str("object", objectName).Msg("cannot create file")
			continue
		}
		_, err = io.Copy(f, r)
		r.Close()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
			log.Error().Err(err).Str("object", objectName).Msg("copy failed")
			continue
		}
		log.Info().Str("object", objectName).Msg("fetched")
	}
}

func main() {
	logutil.ConfigureLogger("downloader")

	bucketURL := flag.String("bucket", "", "artifact bucket URL (file://, gs:// or s3://)")
	root := flag.String("out", "artifacts", "local output directory")
	workers := flag.Int("workers", 8, "concurrent downloads")
	flag.Parse()

	if *bucketURL == "" {
		log.Fatal().Msg("-bucket is required")
	}

	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, *bucketURL)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open bucket")
	}
	defer bucket.Close()

	objects := make(chan string, *workers)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go fetch(ctx, bucket, *root, objects, &wg)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if name := scanner.Text(); name != "" {
			objects <- name
		}
	}
	close(objects)
	wg.Wait()

	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("reading object list")
	}
}
