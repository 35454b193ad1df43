package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"schedcard/internal/config"
	"schedcard/internal/model"
	"schedcard/internal/render"
)

var calendarICS = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//schedcard//pipeline test//EN",
	"BEGIN:VEVENT",
	"UID:past@test",
	"DTSTAMP:20251101T000000Z",
	"DTSTART:20251102T180000Z",
	"DTEND:20251102T200000Z",
	"SUMMARY:Yesterday",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:art@test",
	"DTSTAMP:20251101T000000Z",
	"DTSTART:20251103T180000Z",
	"DTEND:20251103T200000Z",
	"SUMMARY:Art stream",
	"CATEGORIES:Art",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:daily@test",
	"DTSTAMP:20251101T000000Z",
	"DTSTART:20251104T170000Z",
	"DTEND:20251104T183000Z",
	"RRULE:FREQ=DAILY;COUNT=10",
	"SUMMARY:Morning coffee",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

var fixedNow = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func solidLoader() render.ImageLoader {
	return render.LoaderFunc(func(_ context.Context, ref string) (image.Image, error) {
		if strings.Contains(ref, "missing") {
			return nil, errors.New("not found")
		}
		img := image.NewRGBA(image.Rect(0, 0, 20, 20))
		for i := range img.Pix {
			img.Pix[i] = 0x80
		}
		return img, nil
	})
}

func newTestPipeline(t *testing.T, icsURL string) (*Pipeline, afero.Fs) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.MaxEntries = 3
	cfg.CacheDir = "/cache"
	cfg.OutputPath = "/out/preview.png"
	cfg.CategoryImages = map[string]string{"art": "/img/art.png"}
	if icsURL != "" {
		cfg.ICS = []config.ICSConfig{{ID: "main", URL: icsURL}}
	}

	fsys := afero.NewMemMapFs()
	p := NewWithLoader(cfg, fsys, render.DefaultFontSet(), solidLoader())
	p.now = func() time.Time { return fixedNow }
	return p, fsys
}

func calendarServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(calendarICS))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEntriesFromCalendar(t *testing.T) {
	srv := calendarServer(t)
	p, _ := newTestPipeline(t, srv.URL+"/cal.ics")

	es, err := p.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(es.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(es.Entries))
	}

	wantTitles := []string{"Art stream", "Morning coffee", "Morning coffee"}
	for i, e := range es.Entries {
		if e.Title != wantTitles[i] {
			t.Errorf("entry %d title = %q, want %q", i, e.Title, wantTitles[i])
		}
		if i > 0 && e.StartInstant < es.Entries[i-1].StartInstant {
			t.Errorf("entry %d starts before entry %d", i, i-1)
		}
	}

	art := es.Entries[0]
	if art.StartDisplay != "11-03-2025 06:00 PM" || art.EndDisplay != "11-03-2025 08:00 PM" {
		t.Errorf("art display = %q / %q", art.StartDisplay, art.EndDisplay)
	}
	if art.Category != "Art" || art.CategoryImageURL != "/img/art.png" {
		t.Errorf("art category = %q image = %q", art.Category, art.CategoryImageURL)
	}
	if art.DurationText != "2h" {
		t.Errorf("art duration = %q", art.DurationText)
	}
	if !es.RangeEnd.Equal(fixedNow.AddDate(0, 0, 7)) {
		t.Errorf("RangeEnd = %v", es.RangeEnd)
	}
}

func TestEntriesWithoutSources(t *testing.T) {
	p, _ := newTestPipeline(t, "")

	es, err := p.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(es.Entries) != 0 {
		t.Errorf("entries = %v", es.Entries)
	}

	if _, err := p.RenderConfigured(context.Background()); !errors.Is(err, ErrNoEntries) {
		t.Errorf("RenderConfigured err = %v, want ErrNoEntries", err)
	}
}

func TestEntriesAllSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL)
	if _, err := p.Entries(context.Background()); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestWritePreview(t *testing.T) {
	srv := calendarServer(t)
	p, fsys := newTestPipeline(t, srv.URL+"/cal.ics")

	res, err := p.WritePreview(context.Background())
	if err != nil {
		t.Fatalf("WritePreview: %v", err)
	}
	if len(res.Images) != 3 || res.Images[0].State != render.ImageDrawn {
		t.Errorf("images = %+v", res.Images)
	}

	data, err := afero.ReadFile(fsys, "/out/preview.png")
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if !bytes.Equal(data, res.PNG) {
		t.Error("preview file differs from render result")
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 1350 {
		t.Errorf("preview bounds = %v", b)
	}

	leftovers, _ := afero.Glob(fsys, "/out/.schedcard-*")
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestRenderThemes(t *testing.T) {
	p, _ := newTestPipeline(t, "")
	entries := []model.ScheduleEntry{{Title: "Solo", StartDisplay: "11-03-2025 06:00 PM"}}

	opts := p.DefaultCardOptions()
	opts.Theme = "Light"
	light, err := p.Render(context.Background(), entries, opts)
	if err != nil {
		t.Fatalf("Render light: %v", err)
	}
	opts.Theme = ""
	dark, err := p.Render(context.Background(), entries, opts)
	if err != nil {
		t.Fatalf("Render dark: %v", err)
	}

	corner := func(b []byte) color.Color {
		img, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return img.At(0, 0)
	}
	lr, _, _, _ := corner(light.PNG).RGBA()
	dr, _, _, _ := corner(dark.PNG).RGBA()
	if lr <= dr {
		t.Errorf("light background (%d) not brighter than dark (%d)", lr, dr)
	}

	opts.Theme = "sepia"
	if _, err := p.Render(context.Background(), entries, opts); !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("err = %v, want ErrUnknownTheme", err)
	}
}

func TestRenderRejectsTooManyEntries(t *testing.T) {
	p, _ := newTestPipeline(t, "")
	entries := make([]model.ScheduleEntry, model.MaxEntries+1)
	for i := range entries {
		entries[i] = model.ScheduleEntry{Title: "x", StartDisplay: "11-03-2025 06:00 PM"}
	}
	_, err := p.Render(context.Background(), entries, p.DefaultCardOptions())
	if !errors.Is(err, render.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, body := range []string{"first", "second"} {
		if err := WriteFileAtomic(fsys, "/a/b/card.png", []byte(body)); err != nil {
			t.Fatalf("WriteFileAtomic: %v", err)
		}
	}
	got, err := afero.ReadFile(fsys, "/a/b/card.png")
	if err != nil || string(got) != "second" {
		t.Errorf("content = %q, %v", got, err)
	}
	if err := WriteFileAtomic(fsys, "", nil); err == nil {
		t.Error("empty path accepted")
	}
}
