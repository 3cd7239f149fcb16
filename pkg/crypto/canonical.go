// Copyright 2025 Covenant Protocol
//
// Canonical JSON serialization
// Object keys sorted lexicographically, minimal string escapes, shortest
// round-trip number form, no insignificant whitespace. The output is the
// message both for content hashing and Ed25519 signing, so it must be
// byte-identical across implementations.

package crypto

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// CanonicalizeJSON produces the deterministic JSON serialization of any
// JSON-representable value. Struct values are normalized through a JSON
// round-trip first, so `json:"...,omitempty"` tags decide field omission.
func CanonicalizeJSON(v interface{}) (string, error) {
	normalized, err := normalizeValue(v)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := appendCanonical(&buf, normalized); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// normalizeValue converts arbitrary Go values into the generic JSON value
// space (map/slice/string/float64/bool/nil) via encoding/json.
func normalizeValue(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, bool, string, float64, float32, int, int32, int64, uint, uint32, uint64,
		json.Number, map[string]interface{}, []interface{}:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoEncoding, "value is not JSON-representable", err)
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoEncoding, "failed to normalize JSON value", err)
	}
	return out, nil
}

func appendCanonical(buf *strings.Builder, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		appendCanonicalString(buf, val)
	case float64:
		return appendCanonicalNumber(buf, val)
	case float32:
		return appendCanonicalNumber(buf, float64(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return kerrors.Wrap(kerrors.ErrorCodeCryptoEncoding, "invalid JSON number", err)
		}
		return appendCanonicalNumber(buf, f)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sortByUTF16(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := appendCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		normalized, err := normalizeValue(val)
		if err != nil {
			return err
		}
		return appendCanonical(buf, normalized)
	}
	return nil
}

// sortByUTF16 sorts keys by their UTF-16 code unit sequences, which is the
// cross-implementation key order for canonical JSON.
func sortByUTF16(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a := utf16.Encode([]rune(keys[i]))
		b := utf16.Encode([]rune(keys[j]))
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for k := 0; k < n; k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}

// appendCanonicalString writes a JSON string with minimal escapes: only the
// two mandatory escapes, the shorthand control escapes, and \u00XX for the
// remaining control characters. No HTML escaping.
func appendCanonicalString(buf *strings.Builder, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				const hexDigits = "0123456789abcdef"
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// appendCanonicalNumber writes the shortest decimal form that round-trips
// to the same float64. Integral values inside the exact range are written
// without a fraction or exponent.
func appendCanonicalNumber(buf *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return kerrors.New(kerrors.ErrorCodeCryptoEncoding, "NaN and Infinity are not valid JSON numbers")
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// ObjectToMap converts any struct to its generic JSON map form. Used by
// document packages to strip fields before canonicalization.
func ObjectToMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoEncoding, "failed to convert object to map", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCryptoEncoding, "failed to convert object to map", err)
	}
	return m, nil
}
