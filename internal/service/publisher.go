package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/infrastructure/retry"
	"github.com/bnema/transq/internal/port"
)

// Publisher pushes completed outputs to a remote content store. It retries
// until the upload succeeds or its context is cancelled, and only removes the
// local copy after a successful upload.
type Publisher struct {
	remote port.ContentStore
	policy *retry.Policy
}

func NewPublisher(remote port.ContentStore, policy *retry.Policy) *Publisher {
	if policy == nil {
		policy = retry.Default()
	}
	return &Publisher{remote: remote, policy: policy}
}

func (p *Publisher) Publish(ctx context.Context, localPath, name string) error {
	if _, err := os.Stat(localPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("publish %s: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("publish %s: %w", name, err)
	}

	err := p.policy.Do(ctx, "publish "+logger.SanitizeForLog(name), func(ctx context.Context) error {
		return p.remote.Upload(ctx, localPath, name)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}

	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn.Printf("published %s but could not remove local copy: %v", logger.SanitizeForLog(name), err)
	}
	return nil
}
