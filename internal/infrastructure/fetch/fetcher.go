// Package fetch downloads server and plugin artifacts and the small JSON
// documents manifests and catalogs are built from.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
	"anvil.dev/cli/internal/infrastructure/checksum"
	httpinfra "anvil.dev/cli/internal/infrastructure/http"
)

// maxDocumentSize bounds manifest and catalog responses.
const maxDocumentSize = 16 << 20

// Options configures retries and progress reporting.
type Options struct {
	// Attempts is the total number of tries per request, including the first
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Progress        ports.ProgressReporter
	Logger          *slog.Logger
}

// Fetcher implements ports.ArtifactFetcher on top of the HTTP requester.
type Fetcher struct {
	requester *httpinfra.Requester
	opts      Options
	logger    *slog.Logger
}

var _ ports.ArtifactFetcher = (*Fetcher)(nil)

// New creates a new fetcher.
func New(requester *httpinfra.Requester, opts Options) *Fetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval < opts.InitialInterval {
		opts.MaxInterval = opts.InitialInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{requester: requester, opts: opts, logger: logger}
}

// Fetch downloads url into destination. The body streams into a temporary
// file beside destination while its checksum is computed; the file is
// renamed into place only when the checksum matches, so destination is
// either untouched or complete.
func (f *Fetcher) Fetch(ctx context.Context, url, expectedChecksum, destination string) error {
	if _, err := checksum.Parse(expectedChecksum); err != nil {
		return domain.NewError(domain.ErrChecksumMismatch, "fetch", url, fmt.Errorf("unusable expected checksum: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return domain.NewError(domain.ErrDownloadFailed, "fetch", url, fmt.Errorf("failed to create directory: %w", err))
	}

	_, err := retry(ctx, f, url, func() (struct{}, error) {
		return struct{}{}, f.download(ctx, url, expectedChecksum, destination)
	})
	if err != nil {
		return f.classifyDownload(ctx, url, err)
	}
	f.logger.Debug("artifact committed", "url", url, "path", destination)
	return nil
}

// FetchDocument returns the body of a small remote document.
func (f *Fetcher) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	body, err := retry(ctx, f, url, func() ([]byte, error) {
		resp, err := f.requester.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	})
	if err != nil {
		return nil, f.classifyDocument(ctx, url, err)
	}
	return body, nil
}

// Verify reports whether path exists and matches expectedChecksum.
func (f *Fetcher) Verify(path, expectedChecksum string) (bool, error) {
	return checksum.VerifyFile(path, expectedChecksum)
}

// retry runs op under the exponential backoff policy. Only failures the
// transport classifies as transient are retried.
func retry[T any](ctx context.Context, f *Fetcher, url string, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.opts.InitialInterval
	policy.MaxInterval = f.opts.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		result, err := op()
		if err != nil && !httpinfra.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(f.opts.Attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			f.logger.Warn("request failed, retrying", "url", url, "error", err, "wait", wait)
		}),
	)
}

func (f *Fetcher) download(ctx context.Context, url, expectedChecksum, destination string) (err error) {
	verifier, err := checksum.NewVerifier(expectedChecksum)
	if err != nil {
		return err
	}

	resp, err := f.requester.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+".*"+ports.PartialSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	writers := []io.Writer{tmp, verifier}
	var tracker ports.ProgressTracker
	if f.opts.Progress != nil {
		tracker = f.opts.Progress.Track(filepath.Base(destination), resp.ContentLength)
		writers = append(writers, progressWriter{tracker})
		defer func() { tracker.Done(err) }()
	}

	if _, err = io.Copy(io.MultiWriter(writers...), resp.Body); err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err = verifier.Verify(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), destination); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

type progressWriter struct{ tracker ports.ProgressTracker }

func (w progressWriter) Write(p []byte) (int, error) {
	w.tracker.Add(int64(len(p)))
	return len(p), nil
}

func (f *Fetcher) classifyDownload(ctx context.Context, url string, err error) error {
	switch {
	case errors.Is(err, domain.ErrChecksumMismatch):
		var classified *domain.Error
		if errors.As(err, &classified) && classified.Subject == "" {
			return domain.NewError(domain.ErrChecksumMismatch, "fetch", url, classified.Err)
		}
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case httpinfra.IsTimeout(err):
		return domain.NewError(domain.ErrTimeout, "fetch", url, err)
	}
	return domain.NewError(domain.ErrDownloadFailed, "fetch", url, err)
}

func (f *Fetcher) classifyDocument(ctx context.Context, url string, err error) error {
	var status *httpinfra.StatusError
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case errors.As(err, &status) && status.NotFound():
		return domain.NotFoundError("fetch document", url, err)
	}
	return domain.NewError(domain.ErrManifestUnavailable, "fetch document", url, err)
}
