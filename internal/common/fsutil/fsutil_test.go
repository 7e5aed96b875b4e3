package fsutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	cases := map[string]string{
		"":                   "",
		"/tmp":               "/tmp",
		"models/llm":         "models/llm",
		"~":                  home,
		"~/models/llm":       filepath.Join(home, "models", "llm"),
		"~/.sightspeak/t.db": filepath.Join(home, ".sightspeak", "t.db"),
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	if !PathExists(dir) {
		t.Fatal("temp dir should exist")
	}
	if PathExists(filepath.Join(dir, "missing.gguf")) {
		t.Fatal("missing file reported as existing")
	}
}

func TestPrepareFile(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "transcript.db")
	got, err := PrepareFile(target)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if got != target {
		t.Fatalf("got %q", got)
	}
	if !PathExists(filepath.Dir(target)) {
		t.Fatalf("parent not created")
	}
	if PathExists(target) {
		t.Fatalf("file itself must not be created")
	}
}
