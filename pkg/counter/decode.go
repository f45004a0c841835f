package counter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode"
)

// nested fields looked up, in order, when the store replies with an object
var nestedFields = []string{"value", "data", "result"}

// Decode converts a raw store reply into an integer. The second return value
// is false when the reply cannot be resolved to an integer.
func Decode(raw interface{}) (int64, bool) {
	if raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		return decodeFloat(v)
	case float32:
		return decodeFloat(float64(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return decodeFloat(f)
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	case map[string]interface{}:
		for _, field := range nestedFields {
			if nested, ok := v[field]; ok {
				return Decode(nested)
			}
		}
		return parseInt(fmt.Sprint(v))
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(rv.Uint()), true
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return 0, false
		}
		return Decode(rv.Index(0).Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			for _, field := range nestedFields {
				nested := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
				if nested.IsValid() {
					return Decode(nested.Interface())
				}
			}
		}
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return 0, false
		}
		return Decode(rv.Elem().Interface())
	}

	return parseInt(fmt.Sprint(raw))
}

func decodeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

// parseInt reads a base-10 integer prefix: leading whitespace, an optional
// sign, then digits. Anything after the digits is ignored.
func parseInt(s string) (int64, bool) {
	i := 0
	for i < len(s) && unicode.IsSpace(rune(s[i])) {
		i++
	}

	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, false
	}

	n, err := strconv.ParseInt(s[start:i], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
