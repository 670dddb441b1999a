package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectStore serves objects the mirror uploaded, transparently decrypting
// at-rest encryption. internal/storage.S3Store implements it.
type ObjectStore interface {
	Bucket() string
	Download(ctx context.Context, key string) ([]byte, error)
}

// Fetcher resolves a source reference into bytes.
// Supports:
// - s3://bucket/key (AWS SDK v2, default credential chain)
// - http(s):// URLs
// - file://path or plain filesystem paths
type Fetcher struct {
	// MaxBytes caps fetched source size. Zero disables the cap.
	MaxBytes int64
	// Store, when set, serves s3:// refs in its bucket so that objects the
	// mirror wrote encrypted come back readable.
	Store ObjectStore
}

// Fetch returns the source bytes and a best-effort original file name.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	// strip optional #page fragment
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}

	switch {
	case strings.HasPrefix(ref, "s3://"):
		return f.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		return f.fetchFile(strings.TrimPrefix(ref, "file://"))
	default:
		return f.fetchFile(ref)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
	}
	data, err := f.readAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(req.URL.Path), nil
}

func (f *Fetcher) fetchS3(ctx context.Context, s3url string) ([]byte, string, error) {
	trimmed := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(trimmed, "/")
	if slash <= 0 {
		return nil, "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket := trimmed[:slash]
	key := trimmed[slash+1:]

	if f.Store != nil && f.Store.Bucket() == bucket {
		data, err := f.Store.Download(ctx, key)
		if err != nil {
			return nil, "", err
		}
		if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
			return nil, "", fmt.Errorf("source exceeds %d bytes", f.MaxBytes)
		}
		return data, filepath.Base(key), nil
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, "", err
	}
	cli := s3.NewFromConfig(cfg)

	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()
	data, err := f.readAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("fetched s3 source")
	return data, filepath.Base(key), nil
}

func (f *Fetcher) fetchFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, "", fmt.Errorf("source exceeds %d bytes", f.MaxBytes)
	}
	return data, filepath.Base(path), nil
}

func (f *Fetcher) readAll(r io.Reader) ([]byte, error) {
	if f.MaxBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, f.MaxBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > f.MaxBytes {
			return nil, fmt.Errorf("source exceeds %d bytes", f.MaxBytes)
		}
		return data, nil
	}
	return io.ReadAll(r)
}
