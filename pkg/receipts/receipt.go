// Package receipts implements the receipt ledger primitive: the Receipt
// record, the Emitter that stamps and appends receipts to a Sink, anomaly
// receipts and the two StopRule integrity failures.
package receipts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Envelope keys. Everything else in a receipt is payload.
const (
	KeyReceiptType = "receipt_type"
	KeyTS          = "ts"
	KeyTenantID    = "tenant_id"
	KeyPayloadHash = "payload_hash"
)

// TimestampLayout is the UTC ISO-8601 form used for the ts field.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Receipt is one hash-stamped observation. Fields holds the payload,
// normalised to JSON value types (string, float64, bool, nil, []any,
// map[string]any). Integers a float64 cannot hold exactly stay json.Number.
type Receipt struct {
	Type        string
	TS          string
	TenantID    string
	PayloadHash string
	Fields      map[string]any
}

// FromMap builds a receipt from a flat map such as a decoded JSONL line.
// Envelope keys populate the envelope; the rest becomes the payload.
func FromMap(m map[string]any) *Receipt {
	r := &Receipt{Fields: make(map[string]any, len(m))}
	for k, v := range m {
		switch k {
		case KeyReceiptType:
			r.Type, _ = v.(string)
		case KeyTS:
			r.TS, _ = v.(string)
		case KeyTenantID:
			r.TenantID, _ = v.(string)
		case KeyPayloadHash:
			r.PayloadHash, _ = v.(string)
		default:
			r.Fields[k] = v
		}
	}
	return r
}

// Time parses TS. A zero time is returned when TS is absent or malformed.
func (r *Receipt) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.TS)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Get returns the raw payload value for key.
func (r *Receipt) Get(key string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Has reports whether key is present in the payload.
func (r *Receipt) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// String returns the payload value at key as a string. Scalars are
// formatted; missing or null values yield def.
func (r *Receipt) String(key, def string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return def
	}
	return Stringify(v)
}

// Number returns the payload value at key as a float64, or 0 when missing
// or non-numeric.
func (r *Receipt) Number(key string) float64 {
	v, _ := r.Get(key)
	f, _ := ToFloat(v)
	return f
}

// Bool returns true only for a boolean true value.
func (r *Receipt) Bool(key string) bool {
	v, _ := r.Get(key)
	b, _ := v.(bool)
	return b
}

// Truthy reports whether the value at key is present and non-empty:
// true, a non-zero number, a non-empty string, slice or map.
func (r *Receipt) Truthy(key string) bool {
	v, _ := r.Get(key)
	return IsTruthy(v)
}

// FirstNumber returns the first truthy numeric value among keys.
func (r *Receipt) FirstNumber(keys ...string) float64 {
	for _, k := range keys {
		if n := r.Number(k); n != 0 {
			return n
		}
	}
	return 0
}

// Slice returns the payload value at key as a list.
func (r *Receipt) Slice(key string) []any {
	v, _ := r.Get(key)
	s, _ := v.([]any)
	return s
}

// Object returns the payload value at key as a nested map.
func (r *Receipt) Object(key string) map[string]any {
	v, _ := r.Get(key)
	m, _ := v.(map[string]any)
	return m
}

// Map returns the flat form: envelope plus payload in one map.
func (r *Receipt) Map() map[string]any {
	m := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[KeyReceiptType] = r.Type
	m[KeyTS] = r.TS
	m[KeyTenantID] = r.TenantID
	m[KeyPayloadHash] = r.PayloadHash
	return m
}

// MarshalJSON writes the envelope keys first, then payload keys sorted.
func (r *Receipt) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(k string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalNoEscape(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
		return nil
	}

	for _, kv := range [...]struct {
		k string
		v string
	}{
		{KeyReceiptType, r.Type},
		{KeyTS, r.TS},
		{KeyTenantID, r.TenantID},
		{KeyPayloadHash, r.PayloadHash},
	} {
		if err := write(kv.k, kv.v); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, r.Fields[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the flat form in any key order.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := decodeJSON(data, &m); err != nil {
		return err
	}
	*r = *FromMap(m)
	return nil
}

// maxExactInt is the largest integer magnitude a float64 holds exactly.
const maxExactInt = 1 << 53

// decodeJSON unmarshals data like json.Unmarshal, except that integer
// literals beyond 2^53 are kept as json.Number instead of being rounded.
func decodeJSON(data []byte, out *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		m[k] = exactNumbers(v)
	}
	*out = m
	return nil
}

func exactNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if isIntegerLiteral(x) {
			if i, err := x.Int64(); err != nil || i > maxExactInt || i < -maxExactInt {
				return x
			}
		}
		f, err := x.Float64()
		if err != nil {
			return x
		}
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = exactNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = exactNumbers(e)
		}
		return x
	default:
		return v
	}
}

func isIntegerLiteral(n json.Number) bool {
	s := strings.TrimPrefix(n.String(), "-")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// IsTruthy mirrors loose truthiness over JSON values.
func IsTruthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		if f, ok := ToFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// ToFloat converts JSON and Go numeric values to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify formats a JSON value the way it reads in a report: strings
// verbatim, integral floats without a fraction, composites as JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		if isIntegerLiteral(x) {
			return x.String()
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return Stringify(f)
	default:
		if f, ok := ToFloat(v); ok {
			return Stringify(f)
		}
		b, err := marshalNoEscape(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
