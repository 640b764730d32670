package domain

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := NewError(CodeValidation, "name %q empty", "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation match")
	}
	if errors.Is(err, ErrIO) {
		t.Fatalf("unexpected io match")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("expected match through fmt wrapping")
	}
}

func TestWrapErrorKeepsCause(t *testing.T) {
	err := WrapError(CodeIO, os.ErrNotExist, "read %s", "roster.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected cause to be reachable")
	}
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected io code")
	}
	if !strings.Contains(err.Error(), "read roster.json") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
