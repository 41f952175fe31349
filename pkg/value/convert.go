package value

// FromGo converts a native Go value (as produced by encoding/json or
// gopkg.in/yaml.v3 unmarshaling into `any`) into a Value. Unknown types
// coerce to Null rather than panicking — the evaluator must be total.
func FromGo(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return Str(t)
	case float64:
		return Num(t)
	case float32:
		return Num(float64(t))
	case int:
		return Num(float64(t))
	case int64:
		return Num(float64(t))
	case int32:
		return Num(float64(t))
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromGo(it)
		}
		return Array(items)
	case []Value:
		return Array(t)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, fv := range t {
			fields[k] = FromGo(fv)
		}
		return Object(fields)
	case map[string]Value:
		return Object(t)
	default:
		return Null
	}
}

// ToGo converts a Value back into a plain Go value tree (map[string]any,
// []any, string, float64, bool, nil) suitable for JSON/YAML marshaling.
func ToGo(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNum:
		return v.n
	case KindStr:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, it := range v.arr {
			out[i] = ToGo(it)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, fv := range v.obj {
			out[k] = ToGo(fv)
		}
		return out
	default:
		return nil
	}
}
