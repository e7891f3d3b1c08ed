package uuidv7

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestNew(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("expected version 7, got %d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("expected RFC4122 variant, got %v", u.Variant())
	}
}

func TestNewString(t *testing.T) {
	got, err := NewString()
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if got == "" {
		t.Fatal("expected non-empty string")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected parseable uuid, got %v", err)
	}
}

// Record ids sort by creation time so listings ordered by id read oldest
// first. Same-millisecond ids may tie on the timestamp prefix; the check
// only requires non-decreasing prefixes.
func TestNewString_TimeOrderedPrefix(t *testing.T) {
	prev, err := NewString()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	for i := 0; i < 64; i++ {
		next, err := NewString()
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if next[:13] < prev[:13] {
			t.Fatalf("prefix regressed: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestNewReadError(t *testing.T) {
	uuid.SetRand(errReader{})
	defer uuid.SetRand(nil)

	if _, err := New(); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStringReadError(t *testing.T) {
	uuid.SetRand(errReader{})
	defer uuid.SetRand(nil)

	if _, err := NewString(); err == nil {
		t.Fatal("expected error")
	}
}
