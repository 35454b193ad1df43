// Package pipeline wires the ICS event source to the card painter:
// fetch, parse, expand, build entries, render, and write the preview.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"schedcard/internal/config"
	"schedcard/internal/ics"
	appLog "schedcard/internal/log"
	"schedcard/internal/model"
	"schedcard/internal/render"
)

// ErrUnknownTheme is returned by Render for a theme name other than
// "dark" or "light".
var ErrUnknownTheme = errors.New("pipeline: unknown theme")

// ErrNoEntries means the calendar window holds nothing to render.
var ErrNoEntries = errors.New("pipeline: no entries in window")

// Entries is the schedule built from the configured calendars.
type Entries struct {
	Entries    []model.ScheduleEntry
	RangeStart time.Time
	RangeEnd   time.Time
	Location   *time.Location
	// Truncated lists UIDs whose recurrence hit the expansion cap.
	Truncated []string
}

// CardOptions are the display choices of one card.
type CardOptions struct {
	Title           string `json:"title"`
	Footer          string `json:"footer"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	ShowEndDate     bool   `json:"show_end_date"`
	ShowDuration    bool   `json:"show_duration"`
	DateFormat      string `json:"date_format"`
	Theme           string `json:"theme"`
}

// Pipeline owns the fetcher and one painter per theme. It is safe for
// concurrent use.
type Pipeline struct {
	cfg      *config.Config
	fs       afero.Fs
	fetcher  *ics.Fetcher
	painters map[string]*render.Painter
	now      func() time.Time
}

// New builds a pipeline from cfg. fsys backs the ICS cache, local image
// references, font files and the preview output; nil selects the OS
// filesystem.
func New(cfg *config.Config, fsys afero.Fs) (*Pipeline, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	fonts, err := render.LoadFontSet(fsys, cfg.Render.Fonts.Regular, cfg.Render.Fonts.Bold)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	loader := render.NewHTTPLoader(cfg.Render.ImageTimeoutDuration(), cfg.Render.ImageRetries, fsys)
	return NewWithLoader(cfg, fsys, fonts, loader), nil
}

// NewWithLoader is New with an explicit font set and image loader.
func NewWithLoader(cfg *config.Config, fsys afero.Fs, fonts *render.FontSet, loader render.ImageLoader) *Pipeline {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Pipeline{
		cfg:     cfg,
		fs:      fsys,
		fetcher: ics.NewFetcher(fsys, cfg.CacheDir),
		painters: map[string]*render.Painter{
			"dark":  render.NewPainter(render.DarkTheme(), fonts, loader),
			"light": render.NewPainter(render.LightTheme(), fonts, loader),
		},
		now: time.Now,
	}
}

// DefaultCardOptions returns the card options from the configuration.
func (p *Pipeline) DefaultCardOptions() CardOptions {
	r := p.cfg.Render
	return CardOptions{
		Title:           r.Title,
		Footer:          r.Footer,
		ProfileImageURL: r.ProfileImageURL,
		ShowEndDate:     r.ShowEndDate,
		ShowDuration:    r.ShowDuration,
		DateFormat:      r.DateFormat,
		Theme:           r.Theme,
	}
}

// Sources converts the configured ICS subscriptions, skipping entries
// without a URL.
func (p *Pipeline) Sources() []ics.Source {
	sources := make([]ics.Source, 0, len(p.cfg.ICS))
	for _, c := range p.cfg.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: c.URL})
	}
	return sources
}

// Entries fetches every configured calendar and builds the upcoming,
// time-sorted and truncated schedule. Failed sources are logged and
// skipped.
func (p *Pipeline) Entries(ctx context.Context) (Entries, error) {
	loc := p.cfg.Location()
	now := p.now().In(loc)
	horizon := time.Duration(p.cfg.HorizonDays) * 24 * time.Hour

	out := Entries{
		Entries:    []model.ScheduleEntry{},
		RangeStart: now,
		RangeEnd:   now.Add(horizon),
		Location:   loc,
	}

	sources := p.Sources()
	if len(sources) == 0 {
		return out, nil
	}

	results, fetchErrs := p.fetcher.FetchAll(ctx, sources)
	if len(fetchErrs) > 0 && len(results) == 0 {
		return out, fmt.Errorf("pipeline: all %d sources failed: %w", len(fetchErrs), errors.Join(fetchErrs...))
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	// Start a day early so events already running at now survive the
	// expansion window; BuildEntries drops the finished ones.
	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      now.AddDate(0, 0, -1),
		RangeEnd:        out.RangeEnd,
	})
	if err != nil {
		return out, fmt.Errorf("pipeline: expand: %w", err)
	}
	out.Truncated = expanded.TruncatedEvents

	out.Entries = ics.BuildEntries(expanded.Occurrences, ics.EntryOptions{
		Location:       loc,
		Now:            now,
		Horizon:        horizon,
		MaxEntries:     p.cfg.MaxEntries,
		DatePattern:    p.cfg.Render.DateFormat,
		IncludeAllDay:  p.cfg.ShowAllDay,
		CategoryImages: p.cfg.CategoryImages,
	})

	appLog.Debug("entries built",
		"sources", len(sources),
		"events", len(parsed),
		"occurrences", len(expanded.Occurrences),
		"entries", len(out.Entries),
	)
	return out, nil
}

// Render paints entries as a card. Entries must already be ordered and
// truncated; the painter rejects empty or oversized lists.
func (p *Pipeline) Render(ctx context.Context, entries []model.ScheduleEntry, opts CardOptions) (*render.Result, error) {
	theme := strings.ToLower(strings.TrimSpace(opts.Theme))
	if theme == "" {
		theme = "dark"
	}
	painter, ok := p.painters[theme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, opts.Theme)
	}

	cfg := model.RenderConfig{
		CanvasWidth:       p.cfg.Render.Width,
		CanvasHeight:      p.cfg.Render.Height,
		EntryCount:        len(entries),
		ShowEndDate:       opts.ShowEndDate,
		ShowDuration:      opts.ShowDuration,
		DateFormatPattern: opts.DateFormat,
	}
	return painter.Render(ctx, cfg, entries, render.Options{
		Title:           opts.Title,
		ProfileImageURL: opts.ProfileImageURL,
		FooterText:      opts.Footer,
	})
}

// RenderConfigured builds entries from the calendars and renders them with
// the configured card options.
func (p *Pipeline) RenderConfigured(ctx context.Context) (*render.Result, error) {
	es, err := p.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if len(es.Entries) == 0 {
		return nil, ErrNoEntries
	}
	return p.Render(ctx, es.Entries, p.DefaultCardOptions())
}

// WritePreview renders the configured card and atomically replaces the
// file at cfg.OutputPath.
func (p *Pipeline) WritePreview(ctx context.Context) (*render.Result, error) {
	res, err := p.RenderConfigured(ctx)
	if err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(p.fs, p.cfg.OutputPath, res.PNG); err != nil {
		return nil, err
	}
	appLog.Info("preview written", "path", p.cfg.OutputPath, "bytes", len(res.PNG))
	return res, nil
}

// WriteFileAtomic writes data to path on fsys via a temp file and rename,
// creating the parent directory when needed.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte) error {
	if path == "" {
		return errors.New("pipeline: output path is empty")
	}
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: mkdir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".schedcard-*.tmp")
	if err != nil {
		return fmt.Errorf("pipeline: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer fsys.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pipeline: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pipeline: close %s: %w", tmpName, err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("pipeline: rename to %s: %w", path, err)
	}
	return nil
}
