package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLatestPicksLexicographicallyLargest(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "model-00000")
	touch(t, dir, "model-00001")
	touch(t, dir, "model-00010")
	touch(t, dir, "other-99999")

	path, seq, ok, err := Latest(dir, "model")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatalf("expected a checkpoint to be found")
	}
	if seq != 10 {
		t.Fatalf("seq = %d, want 10", seq)
	}
	if filepath.Base(path) != "model-00010" {
		t.Fatalf("path = %s", path)
	}
}

func TestLatestMissingDirReturnsNotOK(t *testing.T) {
	_, _, ok, err := Latest(filepath.Join(t.TempDir(), "missing"), "model")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a missing directory")
	}
}

func TestNextIncrementsSequence(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "model-00003")

	path, seq, err := Next(dir, "model")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if seq != 4 {
		t.Fatalf("seq = %d, want 4", seq)
	}
	if filepath.Base(path) != "model-00004" {
		t.Fatalf("path = %s", path)
	}
}

func TestNextWithNoExistingCheckpointStartsAtZero(t *testing.T) {
	dir := t.TempDir()
	_, seq, err := Next(dir, "model")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if seq != 0 {
		t.Fatalf("seq = %d, want 0", seq)
	}
}
