package services_test

import (
	"errors"
	"strings"
	"testing"

	"mediacompress/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encode", "ffmpeg", "exit status 1", base)
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
	for _, fragment := range []string{"encode", "ffmpeg", "exit status 1"} {
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
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestEventTypeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "missing", err: services.Wrap(services.ErrToolMissing, "probe", "ffprobe", "not found", nil), want: "tool_missing"},
		{name: "tool", err: services.Wrap(services.ErrExternalTool, "encode", "ffmpeg", "", nil), want: "external_tool_failed"},
		{name: "filesystem", err: services.Wrap(services.ErrFilesystem, "finalize", "rename", "", nil), want: "filesystem_error"},
		{name: "plain", err: errors.New("x"), want: "processing_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.EventType(tt.err); got != tt.want {
				t.Fatalf("EventType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHintFallsBack(t *testing.T) {
	if hint := services.Hint(errors.New("x")); hint != "check logs for details" {
		t.Fatalf("unexpected fallback hint %q", hint)
	}
	if hint := services.Hint(services.Wrap(services.ErrToolMissing, "", "", "", nil)); !strings.Contains(hint, "[tools]") {
		t.Fatalf("expected tools hint, got %q", hint)
	}
}
