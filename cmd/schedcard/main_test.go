package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

const entriesJSON = `[
	{"title": "Ranked grind", "category": "Valorant", "start_display": "11-04-2025 10:00 AM", "end_display": "11-04-2025 02:00 PM", "duration_text": "4h", "start_instant": 1762250400},
	{"title": "Art stream", "start_display": "11-05-2025 06:00 PM", "start_instant": 1762365600}
]`

func TestRenderCommandWritesCard(t *testing.T) {
	dir := t.TempDir()
	entriesPath := filepath.Join(dir, "entries.json")
	if err := os.WriteFile(entriesPath, []byte(entriesJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "card.png")

	root := newRootCmd()
	root.SetArgs([]string{
		"--config", filepath.Join(dir, "config.yaml"),
		"render", "--entries", entriesPath, "--out", out, "--theme", "light",
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read card: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 1350 {
		t.Errorf("bounds = %v", b)
	}

	// First run writes the default config.
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

func TestRenderCommandToStdout(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	root := newRootCmd()
	root.SetIn(bytes.NewBufferString(entriesJSON))
	root.SetOut(&stdout)
	root.SetArgs([]string{"-c", filepath.Join(dir, "config.yaml"), "render", "-e", "-", "-o", "-"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := png.Decode(&stdout); err != nil {
		t.Errorf("stdout is not a PNG: %v", err)
	}
}

func TestRenderCommandRejectsUnknownTheme(t *testing.T) {
	dir := t.TempDir()
	entriesPath := filepath.Join(dir, "entries.json")
	if err := os.WriteFile(entriesPath, []byte(entriesJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	root.SetArgs([]string{
		"-c", filepath.Join(dir, "config.yaml"),
		"render", "-e", entriesPath, "-o", filepath.Join(dir, "x.png"), "--theme", "sepia",
	})
	root.SetErr(&bytes.Buffer{})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("unknown theme accepted")
	}
}
