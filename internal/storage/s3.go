// Package storage mirrors finished split output to S3 and resolves s3://
// source references.
package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/errgroup"

	"github.com/local/pdfsplitd/internal/metrics"
	"github.com/local/pdfsplitd/internal/split"
)

const gcmMagic = "GCM3NCR0"

// S3Store uploads archives and artifacts, and downloads s3:// sources.
// A non-empty password enables AES-GCM encryption of uploaded objects and
// transparent decryption of downloads carrying the GCM magic.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	password string
}

// NewS3Store builds a store against the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, prefix, password string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		password: password,
	}, nil
}

// MirrorSplit uploads the archive and each artifact under a common key
// prefix derived from the archive file name. Artifact uploads run
// concurrently; the first failure aborts the rest.
func (s *S3Store) MirrorSplit(ctx context.Context, archivePath string, artifacts []split.OutputArtifact) error {
	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	root := path.Join(s.prefix, base)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)

	g.Go(func() error {
		return s.uploadFile(gctx, path.Join(root, filepath.Base(archivePath)), archivePath, "application/zip")
	})
	for _, a := range artifacts {
		g.Go(func() error {
			return s.uploadFile(gctx, path.Join(root, "parts", a.FileName), a.Path, "application/pdf")
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncUpload("error")
		return fmt.Errorf("mirror split to s3: %w", err)
	}
	metrics.IncUpload("success")
	log.Info().Str("bucket", s.bucket).Str("key", root).Int("artifacts", len(artifacts)).Msg("mirrored split to S3")
	return nil
}

func (s *S3Store) uploadFile(ctx context.Context, key, filePath, contentType string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	var body io.Reader = f
	if s.password != "" {
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", filePath, err)
		}
		enc, err := encryptGCM(data, s.password)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", key, err)
		}
		body = bytes.NewReader(enc)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	log.Debug().Str("key", key).Msg("uploaded object")
	return nil
}

// Download fetches an object and decrypts it when it carries the GCM magic
// and a password is configured.
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if s.password != "" && len(data) > len(gcmMagic) && string(data[:len(gcmMagic)]) == gcmMagic {
		return decryptGCM(data, s.password)
	}
	return data, nil
}

// Bucket returns the configured bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

// encryptGCM seals data as magic(8) + salt(16) + nonce(12) + ciphertext+tag.
func encryptGCM(data []byte, password string) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(gcmMagic)+len(salt)+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

func decryptGCM(data []byte, password string) ([]byte, error) {
	if len(data) < 8+16+12+16 {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt := data[8:24]
	nonce := data[24:36]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[36:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, 100000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
