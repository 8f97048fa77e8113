package table

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ErrInvalidValue is returned if a value or metadata map has no JSON form
var ErrInvalidValue = errors.New("value is not JSON encodable")

// --------------------------------------------------------------------------
// JSON value form
// --------------------------------------------------------------------------

// NormalizeValue converts v into the form every value takes inside the store,
// which is also the form it comes back in after an export and import:
// objects become map[string]any, arrays []any, integral numbers int64 and
// all other numbers float64. The result shares no memory with v.
func NormalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "%v", err)
	}
	return DecodeValue(data)
}

// NormalizeMetadata is NormalizeValue for metadata maps. A nil map stays nil.
func NormalizeMetadata(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	v, err := NormalizeValue(m)
	if err != nil {
		return nil, err
	}
	out, _ := v.(map[string]any)
	return out, nil
}

// DecodeValue decodes one JSON document using the number rules of NormalizeValue
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Wrap(ErrInvalidValue, "trailing data after JSON value")
	}
	return ConvertNumbers(v), nil
}

// ConvertNumbers replaces every json.Number inside v with an int64 or float64.
// Maps and slices are updated in place.
func ConvertNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = ConvertNumbers(e)
		}
	case []any:
		for i, e := range x {
			x[i] = ConvertNumbers(e)
		}
	}
	return v
}
