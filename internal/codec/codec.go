// Package codec implements the canonical structured encoding used when
// persisting opaque values. A registry of type-specific encoders is consulted
// before the generic structural fallback, so embedded object shapes defined
// upstream can be taught to the store without coupling it to them.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxDepth bounds structural traversal so cyclic values fail instead of
// recursing forever.
const maxDepth = 100

// EncoderFunc converts a value it recognizes into a JSON-compatible form.
// It reports false when the value is not its concern.
type EncoderFunc func(v any) (any, bool)

var (
	mu       sync.RWMutex
	encoders []EncoderFunc
)

// Register adds an encoder consulted before the generic fallback. Later
// registrations take precedence over earlier ones.
func Register(fn EncoderFunc) {
	mu.Lock()
	defer mu.Unlock()
	encoders = append([]EncoderFunc{fn}, encoders...)
}

func init() {
	// Known non-primitive shapes that show up in task outputs and metadata.
	Register(func(v any) (any, bool) {
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano), true
		case time.Duration:
			return x.Seconds(), true
		case uuid.UUID:
			return x.String(), true
		case error:
			return x.Error(), true
		}
		return nil, false
	})
}

// DecodeError reports that a stored value could not be parsed back into
// structured form.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode stored value: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode converts v into the canonical structured form: primitives pass
// through, registered encoders run first, then maps and slices are traversed
// and anything else goes through a JSON round trip. Values that cannot be
// represented fail the call; nothing is silently dropped.
func Encode(v any) (any, error) {
	return encode(v, 0)
}

func encode(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nests deeper than %d levels (cycle?)", maxDepth)
	}

	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v, nil
	}

	mu.RLock()
	fns := encoders
	mu.RUnlock()
	for _, fn := range fns {
		if out, ok := fn(v); ok {
			return encode(out, depth+1)
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return encode(rv.Elem().Interface(), depth+1)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			val, err := encode(iter.Value().Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprintf("%v", iter.Key().Interface())] = val
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := encode(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("cannot encode value of type %T", v)
	default:
		// Structs and named scalars: JSON round trip respects Marshaler
		// implementations and struct tags.
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot encode value of type %T: %w", v, err)
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("cannot encode value of type %T: %w", v, err)
		}
		return out, nil
	}
}

// EncodeToString encodes v and renders the result as a JSON text column
// value. Strings pass through unchanged, matching how opaque payloads are
// stored by the memory table.
func EncodeToString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	enc, err := Encode(v)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a stored value back to structured form. Strings holding JSON
// decode to maps, slices, or primitives; anything else returns unchanged. A
// string that is not valid JSON yields a DecodeError alongside the raw value
// so callers can choose to degrade gracefully.
func Decode(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return raw, &DecodeError{Err: err}
	}
	return out, nil
}

// DecodeValue is Decode with the fallback applied: on a parse failure the
// raw stored value is returned unchanged. Opaque, caller-supplied payload
// formats stay readable instead of failing the read.
func DecodeValue(raw any) any {
	out, err := Decode(raw)
	if err != nil {
		return raw
	}
	return out
}

// DecodeMap decodes raw and asserts a string-keyed map, returning an empty
// map when the stored value is absent or has another shape.
func DecodeMap(raw any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	if m, ok := DecodeValue(raw).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
