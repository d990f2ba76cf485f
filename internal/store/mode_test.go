package store

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"AUTO", ModeAuto},
		{"flush", ModeFlush},
		{"force", ModeFlush},
		{"memory", ModeMemory},
		{"Memory", ModeMemory},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseMode_Invalid(t *testing.T) {
	for _, in := range []string{"disk", "none", "automatic"} {
		if _, err := ParseMode(in); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("Expected ErrInvalidMode for %q, got %v", in, err)
		}
	}
}

func TestMode_String(t *testing.T) {
	tests := map[Mode]string{
		ModeAuto:   "auto",
		ModeFlush:  "flush",
		ModeMemory: "memory",
	}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
