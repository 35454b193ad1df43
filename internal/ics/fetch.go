package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	appLog "schedcard/internal/log"
)

const (
	fetchTimeout = 15 * time.Second
	maxICSBytes  = 10 << 20
	userAgent    = "schedcard/1 (+ics)"
)

// Source is one ICS subscription.
type Source struct {
	ID  string
	URL string
}

// FetchResult is the body of one source.
type FetchResult struct {
	Source Source
	Body   []byte
	// FromCache is set when Body came from the disk cache: a 304, or a
	// failed request with a previous copy available.
	FromCache bool
}

// cacheMeta is the validator state stored next to a cached body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests and keeps the last
// good copy of each feed on an afero filesystem, so a calendar outage only
// makes the schedule stale.
type Fetcher struct {
	client   *http.Client
	fs       afero.Fs
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir on fsys. A nil fsys
// uses the OS filesystem.
func NewFetcher(fsys afero.Fs, cacheDir string) *Fetcher {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		fs:       fsys,
		cacheDir: cacheDir,
	}
}

// FetchAll fetches sources one by one. Results hold only sources that
// produced a body; each failure is logged and returned in errs.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) (results []FetchResult, errs []error) {
	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches src, sending the cached ETag / Last-Modified validators
// and falling back to the cached body on any failure.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("ics %s: source URL is empty", src.ID)
	}

	dir := f.cacheDirFor(src.URL)
	meta, _ := f.readMeta(dir)
	cached, _ := afero.ReadFile(f.fs, filepath.Join(dir, "body.ics"))

	fallback := func(cause error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, fmt.Errorf("ics %s: %w", src.ID, cause)
		}
		appLog.Error("ics fetch failed, serving cached copy", cause,
			"id", src.ID,
			"url", redactURL(src.URL),
			"cached_at", meta.UpdatedAt.Format(time.RFC3339),
		)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("ics %s: %w", src.ID, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, fmt.Errorf("ics %s: 304 Not Modified without a cached body", src.ID)
		}
		appLog.Debug("ics not modified", "id", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBytes+1))
		if err != nil {
			return fallback(err)
		}
		if len(body) > maxICSBytes {
			return fallback(fmt.Errorf("feed exceeds %d bytes", maxICSBytes))
		}
		meta := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := f.writeCache(dir, meta, body); err != nil {
			// The fresh body is still good.
			appLog.Error("ics cache write failed", err, "id", src.ID)
		}
		appLog.Info("ics fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

// cacheDirFor keys the cache by a short hash of the URL so secrets in the
// URL never reach the filesystem.
func (f *Fetcher) cacheDirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) readMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := afero.ReadFile(f.fs, filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

// writeCache stores the body before the metadata, so validators never
// describe a body that is not on disk.
func (f *Fetcher) writeCache(dir string, meta cacheMeta, body []byte) error {
	if err := f.fs.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host of a feed URL for logging; private
// calendar links carry their secret in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
