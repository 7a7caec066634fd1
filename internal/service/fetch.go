package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
)

// ErrTooLarge is returned when a fetched file exceeds the size limit.
var ErrTooLarge = errors.New("file exceeds the size limit")

// Acceptor takes ownership of a spooled file and submits a job for it.
type Acceptor interface {
	Accept(tempPath, originalName, additionalArgs string) (domain.Job, error)
}

// FetchOptions configures a Fetcher. Verify, when set, inspects the
// downloaded file before it is accepted.
type FetchOptions struct {
	UploadDir string
	MaxBytes  int64
	Client    *http.Client
	Verify    func(io.ReadSeeker) error
}

// Fetcher downloads files from http(s) URLs in the background and submits
// them like regular uploads once complete.
type Fetcher struct {
	ctx    context.Context
	intake Acceptor
	opts   FetchOptions
	wg     sync.WaitGroup
}

// NewFetcher stops in-flight downloads when ctx is done.
func NewFetcher(ctx context.Context, intake Acceptor, opts FetchOptions) *Fetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		}
	}
	return &Fetcher{ctx: ctx, intake: intake, opts: opts}
}

// NameFromURL returns the last path element of rawURL, or "" when there is
// none.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Fetch validates the request and starts the download. The job is submitted
// when the download finishes; failures after this point are only logged.
func (f *Fetcher) Fetch(rawURL, filename, additionalArgs string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be http or https", domain.ErrInvalidJob)
	}
	if filename == "" || filepath.Base(filename) != filename {
		return fmt.Errorf("%w: invalid filename %q", domain.ErrInvalidJob, filename)
	}
	if err := f.ctx.Err(); err != nil {
		return err
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(u.String(), filename, additionalArgs)
	}()
	logger.Info.Printf("fetching %s from %s", logger.SanitizeForLog(filename), logger.SanitizeForLog(u.Redacted()))
	return nil
}

// Wait blocks until every started download has finished or given up.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

func (f *Fetcher) run(rawURL, filename, additionalArgs string) {
	tmp, err := f.download(rawURL)
	if err != nil {
		logger.Error.Printf("fetch %s failed: %v", logger.SanitizeForLog(filename), err)
		return
	}
	if _, err := f.intake.Accept(tmp, filename, additionalArgs); err != nil {
		logger.Error.Printf("fetched %s rejected: %v", logger.SanitizeForLog(filename), err)
	}
}

// download streams rawURL into a temp file in the upload dir and returns its
// path. The file is removed on any error.
func (f *Fetcher) download(rawURL string) (tmpPath string, err error) {
	req, err := http.NewRequestWithContext(f.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	if f.opts.MaxBytes > 0 && resp.ContentLength > f.opts.MaxBytes {
		return "", ErrTooLarge
	}

	if err := os.MkdirAll(f.opts.UploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	tmp, err := os.CreateTemp(f.opts.UploadDir, ".incoming-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := tmp.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	var body io.Reader = resp.Body
	if f.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.opts.MaxBytes+1)
	}
	n, err := io.Copy(tmp, body)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if f.opts.MaxBytes > 0 && n > f.opts.MaxBytes {
		return "", ErrTooLarge
	}

	if f.opts.Verify != nil {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		if err := f.opts.Verify(tmp); err != nil {
			return "", err
		}
	}
	return tmp.Name(), nil
}
