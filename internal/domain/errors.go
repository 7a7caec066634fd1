package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrNoActiveJob  = errors.New("no active job")
	ErrDuplicateJob = errors.New("a job with this filename is already pending")
	ErrInvalidJob   = errors.New("invalid job")
)

func invalidJob(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidJob, reason)
}
