package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/afero"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultImageTimeout bounds a single image load, retries included.
	DefaultImageTimeout = 8 * time.Second
	// DefaultImageRetries is the number of extra attempts for transient
	// failures.
	DefaultImageRetries = 1

	maxImageBytes = 16 << 20
	retryDelay    = 250 * time.Millisecond
)

// ImageLoader resolves an image reference to a decoded bitmap.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// LoaderFunc adapts a function to ImageLoader.
type LoaderFunc func(ctx context.Context, ref string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, ref string) (image.Image, error) {
	return f(ctx, ref)
}

// HTTPLoader loads http(s) URLs over the network and everything else
// (plain paths or file:// URLs) from a filesystem.
type HTTPLoader struct {
	client  *http.Client
	fs      afero.Fs
	timeout time.Duration
	retries int
}

// NewHTTPLoader creates a loader. A zero timeout selects
// DefaultImageTimeout; a negative retries value disables retries. fsys
// may be nil, in which case local references fail.
func NewHTTPLoader(timeout time.Duration, retries int, fsys afero.Fs) *HTTPLoader {
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	if retries < 0 {
		retries = 0
	}
	return &HTTPLoader{
		client:  &http.Client{},
		fs:      fsys,
		timeout: timeout,
		retries: retries,
	}
}

// Load implements ImageLoader.
func (l *HTTPLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var data []byte
	var err error
	if isRemote(ref) {
		err = retry(ctx, l.retries+1, retryDelay, func() error {
			data, err = l.fetch(ctx, ref)
			return err
		})
	} else {
		data, err = l.readLocal(ref)
	}
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{errors.New(resp.Status)}
	default:
		return nil, errors.New(resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &retryableError{err}
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func (l *HTTPLoader) readLocal(ref string) ([]byte, error) {
	if l.fs == nil {
		return nil, fmt.Errorf("local image %q: no filesystem configured", ref)
	}
	return afero.ReadFile(l.fs, strings.TrimPrefix(ref, "file://"))
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// retryableError marks transient failures (network errors, 5xx, 429).
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// retry runs fn up to attempts times, doubling delay between attempts.
// Only errors marked retryable are retried.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error
	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.As(err, new(*retryableError)) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
