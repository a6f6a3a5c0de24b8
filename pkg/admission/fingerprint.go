package admission

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// Fingerprint is the deterministic digest of a message's selected fields.
// Equal selected values always produce equal fingerprints; fields outside
// the selection (timestamps, nonces, sequence counters) never influence it.
type Fingerprint [sha256.Size]byte

// Hex renders the fingerprint as a fixed-width lowercase hex string, the
// form used inside store keys.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint is the zero value, i.e. was never
// computed.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Extractor computes fingerprints over JSON payloads.
//
// Selectors are gjson paths ("deviceId", "result.status", "steps.0.id")
// resolved against the payload. With no selectors the whole payload is
// digested in canonical form (recursively sorted object keys), so the
// fingerprint is stable under map key reordering either way.
type Extractor struct {
	selectors []string
}

// NewExtractor validates the selector list at setup time. An empty list is
// valid and selects the whole payload.
func NewExtractor(selectors ...string) (*Extractor, error) {
	for i, sel := range selectors {
		if sel == "" {
			return nil, &ConfigurationError{
				Field:  fmt.Sprintf("field_selectors[%d]", i),
				Reason: "must not be empty",
			}
		}
	}
	return &Extractor{selectors: append([]string(nil), selectors...)}, nil
}

// Fingerprint digests the payload's selected fields. It is a pure function
// of its input. A selector that does not resolve, or a payload that is not
// valid JSON, yields an *ExtractionError; the caller's policy decides
// whether that skips deduplication or rejects the request.
func (e *Extractor) Fingerprint(payload []byte) (Fingerprint, error) {
	if !gjson.ValidBytes(payload) {
		return Fingerprint{}, &ExtractionError{Reason: "payload is not valid JSON"}
	}
	if len(e.selectors) == 0 {
		canon, err := canonicalJSON(payload)
		if err != nil {
			return Fingerprint{}, &ExtractionError{Reason: err.Error()}
		}
		return sha256.Sum256(canon), nil
	}

	h := sha256.New()
	for _, sel := range e.selectors {
		res := gjson.GetBytes(payload, sel)
		if !res.Exists() {
			return Fingerprint{}, &ExtractionError{Selector: sel, Reason: "does not resolve on payload"}
		}
		val := []byte(res.Raw)
		if res.IsObject() || res.IsArray() {
			canon, err := canonicalJSON(val)
			if err != nil {
				return Fingerprint{}, &ExtractionError{Selector: sel, Reason: err.Error()}
			}
			val = canon
		}
		// Length-framed records keep selector/value boundaries unambiguous.
		fmt.Fprintf(h, "%d:%s=%d:%s;", len(sel), sel, len(val), val)
	}

	var fp Fingerprint
	h.Sum(fp[:0])
	return fp, nil
}

// canonicalJSON re-encodes a JSON document with object keys sorted at every
// depth and numbers carried through verbatim, so two encodings of the same
// value digest identically.
func canonicalJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(t.String())
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
