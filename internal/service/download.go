package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/port"
)

// OpenCompleted prepares a completed output for download. Stores that can
// presign get a URL back; otherwise the output is opened for streaming.
// Names missing from the completed list are domain.ErrNotFound.
func (p *Pipeline) OpenCompleted(ctx context.Context, name string) (domain.Download, error) {
	p.mu.RLock()
	known := slices.Contains(p.state.completed, name)
	p.mu.RUnlock()
	if !known {
		return domain.Download{}, domain.ErrNotFound
	}

	store := p.authority()
	if linker, ok := store.(port.Linker); ok {
		url, err := linker.DownloadURL(ctx, name, p.opts.LinkTTL)
		if err == nil {
			return domain.Download{Name: name, URL: url}, nil
		}
		logger.Warn.Printf("no download link for %s, streaming instead: %v", logger.SanitizeForLog(name), err)
	}

	opener, ok := store.(port.Opener)
	if !ok {
		return domain.Download{}, fmt.Errorf("download %s: content store cannot serve files", name)
	}
	body, obj, err := opener.Open(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Download{}, err
		}
		return domain.Download{}, fmt.Errorf("open %s: %w", name, err)
	}
	return domain.Download{Name: name, Body: body, Object: obj}, nil
}
