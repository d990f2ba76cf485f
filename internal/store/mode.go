package store

import (
	"fmt"
	"strings"
)

// Mode controls when in-memory changes are committed to disk.
type Mode int

const (
	// ModeAuto defers flushing until the store is closed.
	ModeAuto Mode = iota
	// ModeFlush flushes synchronously after every persistent mutation.
	ModeFlush
	// ModeMemory never touches disk. Forced when no root path is given
	// or persistence is disabled.
	ModeMemory
)

// ParseMode converts a configuration string to a Mode.
// "force" is accepted as an alias for "flush".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "flush", "force":
		return ModeFlush, nil
	case "memory":
		return ModeMemory, nil
	default:
		return ModeAuto, fmt.Errorf("%w: unknown store mode %q", ErrInvalidMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeFlush:
		return "flush"
	case ModeMemory:
		return "memory"
	default:
		return "unknown"
	}
}
