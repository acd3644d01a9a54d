package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := Validation("clipDuration must be positive")
	wrapped := fmt.Errorf("create job: %w", base)

	if got := KindOf(wrapped); got != KindValidation {
		t.Fatalf("expected validation, got %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatal("expected errors.Is to match the validation sentinel")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatal("validation error must not match not found")
	}
}

func TestRenderErrorCarriesDetail(t *testing.T) {
	err := Render(errors.New("exit status 1"), "Invalid data found", "cut clip %d", 2)
	msg := err.Error()
	if !strings.Contains(msg, "cut clip 2") || !strings.Contains(msg, "Invalid data found") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !errors.Is(err, ErrRender) {
		t.Fatal("expected render kind")
	}
	if Code(KindOf(err)) != "RENDER_ERROR" {
		t.Fatalf("unexpected code %s", Code(KindOf(err)))
	}
}
