package store

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCodec_RoundTrip(t *testing.T) {
	values := []any{
		"a string",
		int64(-123456789),
		2.5,
		true,
		nil,
		[]byte{0x00, 0xff, 0x10},
		time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
	}

	for _, v := range values {
		orig, err := NewEntry(v, true)
		if err != nil {
			t.Fatalf("NewEntry(%v) failed: %v", v, err)
		}
		orig.applyExpiry(ExpiresAt(time.Now().Add(time.Hour)))

		raw, err := encodeEntry(orig)
		if err != nil {
			t.Fatalf("encodeEntry(%v) failed: %v", v, err)
		}

		got := decodeEntry(raw, discardLogger())
		if got == nil {
			t.Fatalf("decodeEntry rejected valid entry for %v: %s", v, raw)
		}
		if !got.equivalent(orig) {
			t.Errorf("Round-trip changed entry for %v:\n  before %q\n  after  %q",
				v, orig.canonical(), got.canonical())
		}
	}
}

func TestCodec_RoundTripWithoutExpiry(t *testing.T) {
	orig, _ := NewEntry("forever", true)
	raw, err := encodeEntry(orig)
	if err != nil {
		t.Fatalf("encodeEntry failed: %v", err)
	}

	got := decodeEntry(raw, discardLogger())
	if got == nil {
		t.Fatal("decodeEntry rejected valid entry")
	}
	if _, ok := got.Expires(); ok {
		t.Error("Expected no expiry after round-trip")
	}
	if !got.equivalent(orig) {
		t.Errorf("Round-trip changed entry: %q vs %q", orig.canonical(), got.canonical())
	}
}

func TestCodec_WireFormatFields(t *testing.T) {
	e, _ := NewEntry("payload", true)
	raw, err := encodeEntry(e)
	if err != nil {
		t.Fatalf("encodeEntry failed: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Encoded entry is not a JSON object: %v", err)
	}
	for _, key := range []string{"v", "x", "c", "!"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected wire field %q, got %s", key, raw)
		}
	}
}

func TestCodec_TamperedValueRejected(t *testing.T) {
	e, _ := NewEntry("original", true)
	raw, _ := encodeEntry(e)

	tampered := bytes.Replace(raw, []byte(`"original"`), []byte(`"modified"`), 1)
	if bytes.Equal(tampered, raw) {
		t.Fatal("Tampering setup failed to modify the payload")
	}

	if got := decodeEntry(tampered, discardLogger()); got != nil {
		t.Errorf("Expected tampered entry to be rejected, got %q", got.canonical())
	}
}

func TestCodec_TamperedChecksumRejected(t *testing.T) {
	e, _ := NewEntry("original", true)
	raw, _ := encodeEntry(e)

	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	w.Sum = "000000"
	tampered, _ := json.Marshal(w)

	if got := decodeEntry(tampered, discardLogger()); got != nil {
		t.Errorf("Expected bad checksum to be rejected, got %q", got.canonical())
	}
}

func TestCodec_TamperedExpiryRejected(t *testing.T) {
	e, _ := NewEntry("original", true)
	e.applyExpiry(ExpiresAt(time.Now().Add(time.Minute)))
	raw, _ := encodeEntry(e)

	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	// Push the expiry out a year without refreshing the checksum.
	later := *w.Expires + 365*24*3600
	w.Expires = &later
	tampered, _ := json.Marshal(w)

	if got := decodeEntry(tampered, discardLogger()); got != nil {
		t.Error("Expected modified expiry to be rejected")
	}
}

func TestCodec_UnknownKindRejected(t *testing.T) {
	e, _ := NewEntry("v", true)
	raw, _ := encodeEntry(e)

	var w wireEntry
	json.Unmarshal(raw, &w)
	w.Kind = "complex"
	tampered, _ := json.Marshal(w)

	if decodeEntry(tampered, discardLogger()) != nil {
		t.Error("Expected unknown kind tag to be rejected")
	}
}

func TestCodec_MalformedInputRejected(t *testing.T) {
	inputs := []string{
		`not json`,
		`{}`,
		`{"v":"x"}`,
		`[1,2,3]`,
	}
	for _, in := range inputs {
		if decodeEntry(json.RawMessage(in), discardLogger()) != nil {
			t.Errorf("Expected %q to be rejected", in)
		}
	}
}

func TestCodec_LoadedEntriesArePersistent(t *testing.T) {
	e, _ := NewEntry("v", true)
	raw, _ := encodeEntry(e)

	got := decodeEntry(raw, discardLogger())
	if got == nil {
		t.Fatal("decodeEntry rejected valid entry")
	}
	if !got.Persistent() {
		t.Error("Expected loaded entry to be persistent")
	}
}

func TestCodec_ExpiryChecksumStableAcrossRoundTrips(t *testing.T) {
	e, _ := NewEntry("v", true)
	e.applyExpiry(ExpiresIn(90 * time.Minute))

	raw, _ := encodeEntry(e)
	first := decodeEntry(raw, discardLogger())
	if first == nil {
		t.Fatal("First decode rejected valid entry")
	}

	raw2, err := encodeEntry(first)
	if err != nil {
		t.Fatalf("Second encode failed: %v", err)
	}
	second := decodeEntry(raw2, discardLogger())
	if second == nil {
		t.Fatal("Second decode rejected re-encoded entry")
	}
	if first.checksum() != second.checksum() {
		t.Errorf("Checksum drifted across round-trips: %q vs %q",
			first.checksum(), second.checksum())
	}
}
