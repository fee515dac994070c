package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

func openTestStore(t *testing.T) *catalogdb.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := catalogdb.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClassifySuffixRecognizesKnownClasses(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name       string
		wantSuffix string
		wantMedia  bool
	}{
		{"Some Title-aaaaaaaaaaa.info.json", "info.json", false},
		{"Some Title-aaaaaaaaaaa_3.jpg", "_3.jpg", false},
		{"Some Title-aaaaaaaaaaa.subtitle.en.vtt", "subtitle.en.vtt", false},
		{"Some Title-aaaaaaaaaaa.caption.en.vtt", "caption.en.vtt", false},
		{"Some Title-aaaaaaaaaaa.mkv", "mkv", true},
	}
	for _, c := range cases {
		p := filepath.Join(dir, c.name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		suffix, isMedia, err := classifySuffix(p)
		if err != nil {
			t.Fatalf("classifySuffix(%s): %v", c.name, err)
		}
		if suffix != c.wantSuffix || isMedia != c.wantMedia {
			t.Fatalf("classifySuffix(%s) = (%q,%v), want (%q,%v)", c.name, suffix, isMedia, c.wantSuffix, c.wantMedia)
		}
	}
}

func TestClassifySuffixRejectsUnrecognizedContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "Some Title-aaaaaaaaaaa")
	if err := os.WriteFile(p, []byte("not a media file, just text"), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if _, _, err := classifySuffix(p); err == nil {
		t.Fatalf("classifySuffix(%s): want error for unrecognized content, got nil", p)
	}
}

func TestExtractChaptersFillsLeadingStart(t *testing.T) {
	doc := map[string]any{
		"chapters": []any{
			map[string]any{"start_time": float64(30), "title": "Intro"},
			map[string]any{"start_time": float64(90), "title": "Body"},
		},
	}
	chapters := extractChapters(doc)
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters (filled start), got %d: %+v", len(chapters), chapters)
	}
	if chapters[0].Start != 0 || chapters[0].Label != "Start" {
		t.Fatalf("expected leading 0:00 Start chapter, got %+v", chapters[0])
	}
}

func TestExtractChaptersNoFillWhenFirstIsZero(t *testing.T) {
	doc := map[string]any{
		"chapters": []any{
			map[string]any{"start_time": float64(0), "title": "Intro"},
		},
	}
	chapters := extractChapters(doc)
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
}

func TestSizeGateRemovesMissingAdvertisedSizeFile(t *testing.T) {
	dir := t.TempDir()
	base := "Some Title-aaaaaaaaaaa.mkv"
	mediaPath := filepath.Join(dir, base)
	if err := os.WriteFile(mediaPath, []byte("short"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	satisfied, err := sizeGate(dir, base, mediaPath)
	if err != nil {
		t.Fatalf("sizeGate: %v", err)
	}
	if satisfied {
		t.Fatalf("expected not satisfied without advertised sizes")
	}
	if _, statErr := os.Stat(mediaPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected stale file to be removed")
	}
}

func TestCheckSleepGateReportsActiveSleep(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := tx.PutSleep("aaaaaaaaaaa", now.Add(time.Hour)); err != nil {
		t.Fatalf("PutSleep: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	sleeping, wake, err := checkSleepGate(s, "aaaaaaaaaaa", now)
	if err != nil {
		t.Fatalf("checkSleepGate: %v", err)
	}
	if !sleeping {
		t.Fatalf("expected sleeping")
	}
	if !wake.Equal(now.Add(time.Hour)) {
		t.Fatalf("got wake %v", wake)
	}
}
