package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestErrorMessageDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.ErrorMessage("ROOM_FULL", nil); got != "This room is full. Please try another room." {
		t.Fatalf("ROOM_FULL: %q", got)
	}
	if got := c.ErrorMessage("NOPE", nil); got != "An unexpected error occurred." {
		t.Fatalf("unknown code: %q", got)
	}
	if got := c.ErrorMessage("INSUFFICIENT_PLAYERS", map[string]any{"min": 3}); got != "At least 3 players are needed to start." {
		t.Fatalf("templated: %q", got)
	}
	// missing template data falls back instead of rendering "<no value>"
	if got := c.ErrorMessage("INSUFFICIENT_PLAYERS", map[string]any{}); got != "An unexpected error occurred." {
		t.Fatalf("missing data: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  ROOM_FULL: \"Full!\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.ErrorMessage("ROOM_FULL", nil); got != "Full!" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.ErrorMessage("ROOM_NOT_FOUND", nil); got != "Room not found. Please check the room code." {
		t.Fatalf("default lost: %q", got)
	}
}

func TestOverrideDirDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("errors:\n  ROOM_FULL: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
