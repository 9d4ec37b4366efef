package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := Write(dest, []byte("compiled")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "compiled" {
		t.Fatalf("content = %q", got)
	}
}

func TestWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed WriteFile: %v", err)
	}
	if err := Write(dest, []byte("fresh")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "fresh" {
		t.Fatalf("content = %q, want overwrite", got)
	}
}

func TestWrite_FailsOnMissingDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing", "out.bin")
	if err := Write(dest, []byte("x")); err == nil {
		t.Fatalf("expected error writing into nonexistent directory")
	}
}
