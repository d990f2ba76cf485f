package store

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which of the supported value kinds an Entry holds.
// The tag is written to disk so serialization losses (bytes, timestamps)
// can be reversed on load.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindNull   Kind = "null"
	KindBytes  Kind = "bytes"
	KindTime   Kind = "datetime"
)

// Entry is a single cached value with expiry and integrity metadata.
type Entry struct {
	value      any
	kind       Kind
	expires    time.Time // zero value means no expiry
	persistent bool
}

// NewEntry builds an entry from a supported value. Integer and float
// widths are normalized to int64/float64. Unsupported kinds fail with
// ErrUnsupportedKind.
func NewEntry(value any, persistent bool) (*Entry, error) {
	v, kind, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	return &Entry{value: v, kind: kind, persistent: persistent}, nil
}

func normalizeValue(value any) (any, Kind, error) {
	switch v := value.(type) {
	case nil:
		return nil, KindNull, nil
	case string:
		return v, KindString, nil
	case bool:
		return v, KindBool, nil
	case int:
		return int64(v), KindInt, nil
	case int8:
		return int64(v), KindInt, nil
	case int16:
		return int64(v), KindInt, nil
	case int32:
		return int64(v), KindInt, nil
	case int64:
		return v, KindInt, nil
	case uint:
		return int64(v), KindInt, nil
	case uint8:
		return int64(v), KindInt, nil
	case uint16:
		return int64(v), KindInt, nil
	case uint32:
		return int64(v), KindInt, nil
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	case []byte:
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, KindBytes, nil
	case time.Time:
		return v.UTC(), KindTime, nil
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedKind, value)
	}
}

func normalizeFloat(v float64) (any, Kind, error) {
	// NaN and infinities have no JSON encoding.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, "", fmt.Errorf("%w: non-finite float", ErrUnsupportedKind)
	}
	return v, KindFloat, nil
}

// Expiry describes how an entry's expiration should change. The zero
// value leaves the current expiry untouched.
type Expiry struct {
	set   bool
	clear bool
	now   bool
	at    time.Time
	in    time.Duration
	rel   bool
}

// ExpiresAt sets an absolute expiry. The timestamp is stored in UTC and
// truncated to microseconds, the precision of the wire format.
func ExpiresAt(t time.Time) Expiry { return Expiry{set: true, at: t} }

// ExpiresIn sets an expiry relative to now.
func ExpiresIn(d time.Duration) Expiry { return Expiry{set: true, rel: true, in: d} }

// ExpiresNow marks the entry as expired immediately.
func ExpiresNow() Expiry { return Expiry{set: true, now: true} }

// NoExpiry clears any expiry so the entry never expires.
func NoExpiry() Expiry { return Expiry{set: true, clear: true} }

func (e *Entry) applyExpiry(exp Expiry) {
	if !exp.set {
		return
	}
	switch {
	case exp.clear:
		e.expires = time.Time{}
	case exp.now:
		e.expires = time.Now().UTC().Truncate(time.Microsecond)
	case exp.rel:
		e.expires = time.Now().Add(exp.in).UTC().Truncate(time.Microsecond)
	default:
		e.expires = exp.at.UTC().Truncate(time.Microsecond)
	}
}

// Value returns the cached value.
func (e *Entry) Value() any { return e.value }

// Kind returns the entry's type tag.
func (e *Entry) Kind() Kind { return e.kind }

// Persistent reports whether the entry survives a flush to disk.
func (e *Entry) Persistent() bool { return e.persistent }

// Expires returns the absolute expiry and whether one is set.
func (e *Entry) Expires() (time.Time, bool) {
	return e.expires, !e.expires.IsZero()
}

// ExpiresIn returns the remaining lifetime, clamped at zero. The second
// return is false when the entry never expires.
func (e *Entry) ExpiresIn() (time.Duration, bool) {
	if e.expires.IsZero() {
		return 0, false
	}
	d := time.Until(e.expires)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Live reports whether the entry is unexpired. Liveness, not mere
// presence, gates every read path.
func (e *Entry) Live() bool {
	return e.expires.IsZero() || e.expires.After(time.Now())
}

// canonical renders the entry into the fixed form the checksum is
// computed over. Field order and separators must never change: a stored
// entry has to reproduce the same checksum across processes and
// versions.
func (e *Entry) canonical() string {
	flag := "-"
	if e.persistent {
		flag = "+"
	}
	exp := "never"
	if !e.expires.IsZero() {
		exp = e.expires.UTC().Format(time.RFC3339Nano)
	}
	return string(e.kind) + ":" + flag + ":" + e.valueString() + " expires: " + exp
}

func (e *Entry) valueString() string {
	switch e.kind {
	case KindString:
		return e.value.(string)
	case KindInt:
		return strconv.FormatInt(e.value.(int64), 10)
	case KindFloat:
		return strconv.FormatFloat(e.value.(float64), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(e.value.(bool))
	case KindNull:
		return "null"
	case KindBytes:
		return base64.StdEncoding.EncodeToString(e.value.([]byte))
	case KindTime:
		return e.value.(time.Time).UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// checksum returns the 6-hex-character integrity prefix for the entry.
func (e *Entry) checksum() string {
	sum := sha1.Sum([]byte(e.canonical()))
	return hex.EncodeToString(sum[:])[:checksumLen]
}

// equivalent reports whether two entries serialize identically (value,
// kind, persistence and expiry all match). Used for lazy write elision.
func (e *Entry) equivalent(other *Entry) bool {
	return other != nil && e.canonical() == other.canonical()
}
