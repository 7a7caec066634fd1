package port

import (
	"context"
	"io"
	"time"

	"github.com/bnema/transq/internal/domain"
)

// ContentStore holds completed outputs, either in a local directory or in a
// remote bucket. Every method must be safe to retry. Delete of a missing entry
// returns domain.ErrNotFound.
type ContentStore interface {
	Upload(ctx context.Context, localPath, name string) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.StoredObject, error)
}

// Opener is implemented by stores that can stream an entry back.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, domain.StoredObject, error)
}

// Linker is implemented by stores that can hand out a time limited download
// URL, so clients fetch the entry without going through this server.
type Linker interface {
	DownloadURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}
