// Package gcs publishes completed outputs to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/port"
)

type Options struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	// SignerEmail and SignerKeyFile (a PEM private key) sign download URLs.
	// Left empty, signing uses whatever the client credentials allow.
	SignerEmail   string
	SignerKeyFile string
}

type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string

	signerEmail string
	signerKey   []byte
}

// NewStore falls back to application default credentials when no
// credentials file is configured.
func NewStore(ctx context.Context, opts Options, extra ...option.ClientOption) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	clientOpts := extra
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	var signerKey []byte
	if opts.SignerKeyFile != "" {
		if opts.SignerEmail == "" {
			return nil, fmt.Errorf("gcs: signer email is required with a signer key")
		}
		key, err := os.ReadFile(opts.SignerKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signer key: %w", err)
		}
		signerKey = key
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	return &Store{
		client:      client,
		bucket:      client.Bucket(opts.Bucket),
		name:        opts.Bucket,
		prefix:      strings.Trim(opts.Prefix, "/"),
		signerEmail: opts.SignerEmail,
		signerKey:   signerKey,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) object(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *Store) Upload(ctx context.Context, localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	objectName := s.object(name)
	wc := s.bucket.Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(wc, f); err != nil {
		_ = wc.Close()
		return fmt.Errorf("copy to gs://%s/%s: %w", s.name, objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", s.name, objectName, err)
	}

	logger.Info.Printf("uploaded %s to gs://%s/%s", logger.SanitizeForLog(name), s.name, objectName)
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	objectName := s.object(name)
	if err := s.bucket.Object(objectName).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete gs://%s/%s: %w", s.name, objectName, err)
	}
	return nil
}

// DownloadURL needs a signer key or client credentials that can sign. Without
// them it fails and callers stream the object through Open instead.
func (s *Store) DownloadURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	objectName := s.object(name)
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if len(s.signerKey) > 0 {
		opts.GoogleAccessID = s.signerEmail
		opts.PrivateKey = s.signerKey
	}
	url, err := s.bucket.SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("sign gs://%s/%s: %w", s.name, objectName, err)
	}
	return url, nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, domain.StoredObject, error) {
	objectName := s.object(name)
	r, err := s.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.StoredObject{}, domain.ErrNotFound
		}
		return nil, domain.StoredObject{}, fmt.Errorf("read gs://%s/%s: %w", s.name, objectName, err)
	}
	return r, domain.StoredObject{
		Name:     name,
		Size:     r.Attrs.Size,
		Modified: r.Attrs.LastModified,
	}, nil
}

func (s *Store) List(ctx context.Context) ([]domain.StoredObject, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}
	// skip "sub directories"
	query.Delimiter = "/"

	var objects []domain.StoredObject
	it := s.bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s: %w", s.name, err)
		}
		if attrs.Name == "" {
			// synthetic prefix entry
			continue
		}
		objects = append(objects, domain.StoredObject{
			Name:     strings.TrimPrefix(attrs.Name, query.Prefix),
			Size:     attrs.Size,
			Modified: attrs.Updated,
		})
	}
	return objects, nil
}

var (
	_ port.ContentStore = (*Store)(nil)
	_ port.Linker       = (*Store)(nil)
	_ port.Opener       = (*Store)(nil)
)
