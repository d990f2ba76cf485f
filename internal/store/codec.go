package store

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math"
	"time"
)

// checksumLen is the number of hex characters of the SHA1 digest kept
// as the integrity prefix.
const checksumLen = 6

// wireEntry is the on-disk shape of a single entry inside the cache
// file: {"v": value, "x": seconds-since-epoch or null, "c": tag,
// "!": checksum}. Written compact, no extraneous whitespace.
type wireEntry struct {
	Value   json.RawMessage `json:"v"`
	Expires *float64        `json:"x"`
	Kind    string          `json:"c"`
	Sum     string          `json:"!"`
}

// encodeEntry serializes an entry for the cache file. The value keeps
// its native JSON encoding where possible; byte sequences are base64
// and timestamps RFC 3339.
func encodeEntry(e *Entry) (json.RawMessage, error) {
	var value any
	switch e.kind {
	case KindBytes:
		value = base64.StdEncoding.EncodeToString(e.value.([]byte))
	case KindTime:
		value = e.value.(time.Time).UTC().Format(time.RFC3339Nano)
	default:
		value = e.value
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var expires *float64
	if !e.expires.IsZero() {
		// Microsecond precision survives a float64 round-trip for any
		// realistic epoch, so the checksum stays stable across loads.
		sec := float64(e.expires.UnixMicro()) / 1e6
		expires = &sec
	}

	return json.Marshal(wireEntry{
		Value:   raw,
		Expires: expires,
		Kind:    string(e.kind),
		Sum:     e.checksum(),
	})
}

// decodeEntry reverses encodeEntry. It returns nil, never an error, on
// any malformed input: missing fields, unknown tag, a value that cannot
// be converted back to its tagged kind, or a checksum mismatch. The
// caller treats nil as "entry not present".
func decodeEntry(raw json.RawMessage, log *slog.Logger) *Entry {
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil || len(w.Value) == 0 {
		log.Debug("cache entry could not be parsed", "error", err)
		return nil
	}

	value, ok := decodeValue(Kind(w.Kind), w.Value)
	if !ok {
		log.Debug("cache entry value corrupted", "kind", w.Kind)
		return nil
	}

	// Entries that made it to disk are persistent by definition.
	e := &Entry{value: value, kind: Kind(w.Kind), persistent: true}
	if w.Expires != nil {
		e.expires = time.UnixMicro(int64(math.Round(*w.Expires * 1e6))).UTC()
	}

	if e.checksum() != w.Sum {
		log.Warn("tampering detected with cache entry", "kind", w.Kind)
		return nil
	}
	return e
}

func decodeValue(kind Kind, raw json.RawMessage) (any, bool) {
	switch kind {
	case KindString:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false
		}
		return s, true
	case KindInt:
		var n json.Number
		if json.Unmarshal(raw, &n) != nil {
			return nil, false
		}
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		return i, true
	case KindFloat:
		var f float64
		if json.Unmarshal(raw, &f) != nil {
			return nil, false
		}
		return f, true
	case KindBool:
		var b bool
		if json.Unmarshal(raw, &b) != nil {
			return nil, false
		}
		return b, true
	case KindNull:
		if string(raw) != "null" {
			return nil, false
		}
		return nil, true
	case KindBytes:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, false
		}
		return b, true
	case KindTime:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, false
		}
		return t.UTC(), true
	default:
		return nil, false
	}
}
