package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rwese/obsidian-postprocessor/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "script", "exec", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"script", "exec", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("io"), want: false},
		{name: "transient", err: services.Wrap(services.ErrTransient, "http", "post", "503", nil), want: false},
		{name: "timeout", err: services.Wrap(services.ErrTimeout, "runner", "invoke", "deadline", nil), want: false},
		{name: "permanent", err: services.Wrap(services.ErrPermanent, "http", "post", "400", nil), want: true},
		{name: "validation", err: services.Wrap(services.ErrValidation, "script", "args", "bad", nil), want: true},
		{name: "not found wrapped twice", err: fmt.Errorf("outer: %w", services.Wrap(services.ErrNotFound, "", "", "missing", nil)), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.IsPermanent(tt.err); got != tt.want {
				t.Fatalf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
