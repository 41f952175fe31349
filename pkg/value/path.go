package value

import "strconv"

// Path is a parsed dotted-path, e.g. "data.tasks.0.title" -> ["data","tasks","0","title"].
type Path []string

func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	segs := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			segs = append(segs, dotted[start:i])
			start = i + 1
		}
	}
	segs = append(segs, dotted[start:])
	return segs
}

func (p Path) String() string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}

// Get walks root following path segments, consulting object fields and
// array indices (numeric segments). Returns (Null, false) if any segment
// along the way is absent.
func Get(root Value, path Path) (Value, bool) {
	cur := root
	for _, seg := range path {
		switch cur.kind {
		case KindObject:
			next, ok := cur.obj[seg]
			if !ok {
				return Null, false
			}
			cur = next
		case KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.arr) {
				return Null, false
			}
			cur = cur.arr[idx]
		default:
			return Null, false
		}
	}
	return cur, true
}

// Set returns a new root with path set to val, creating intermediate
// objects as needed (never arrays — numeric path segments navigate
// existing arrays only — patches address data.* structural-set
// semantics, not array insertion).
func Set(root Value, path Path, val Value) Value {
	if len(path) == 0 {
		return val
	}
	return setAt(root, path, val)
}

func setAt(node Value, path Path, val Value) Value {
	seg := path[0]
	rest := path[1:]

	if idx, err := strconv.Atoi(seg); err == nil && node.kind == KindArray {
		items := append([]Value(nil), node.arr...)
		for len(items) <= idx {
			items = append(items, Null)
		}
		if len(rest) == 0 {
			items[idx] = val
		} else {
			items[idx] = setAt(items[idx], rest, val)
		}
		return Array(items)
	}

	fields := map[string]Value{}
	if node.kind == KindObject {
		for k, v := range node.obj {
			fields[k] = v
		}
	}
	if len(rest) == 0 {
		fields[seg] = val
	} else {
		child, ok := fields[seg]
		if !ok {
			child = Null
		}
		fields[seg] = setAt(child, rest, val)
	}
	return Object(fields)
}

// Unset returns a new root with path removed. Unsetting an absent path is
// a no-op that returns root unchanged (totality: never errors).
func Unset(root Value, path Path) Value {
	if len(path) == 0 {
		return root
	}
	return unsetAt(root, path)
}

func unsetAt(node Value, path Path) Value {
	seg := path[0]
	rest := path[1:]

	if idx, err := strconv.Atoi(seg); err == nil && node.kind == KindArray {
		if idx < 0 || idx >= len(node.arr) {
			return node
		}
		items := append([]Value(nil), node.arr...)
		if len(rest) == 0 {
			items = append(items[:idx], items[idx+1:]...)
		} else {
			items[idx] = unsetAt(items[idx], rest)
		}
		return Array(items)
	}

	if node.kind != KindObject {
		return node
	}
	if _, ok := node.obj[seg]; !ok {
		return node
	}
	fields := make(map[string]Value, len(node.obj))
	for k, v := range node.obj {
		fields[k] = v
	}
	if len(rest) == 0 {
		delete(fields, seg)
	} else {
		fields[seg] = unsetAt(fields[seg], rest)
	}
	return Object(fields)
}

// Merge shallow-merges patchValue (which must be an Object) into the
// object found at path, creating it if absent. Non-object targets are
// replaced outright, matching "merge requires an object value" — the
// caller (pkg/flow) validates patchValue's shape before calling this.
func Merge(root Value, path Path, patchValue Value) Value {
	existing, ok := Get(root, path)
	if !ok || existing.kind != KindObject {
		return Set(root, path, patchValue)
	}
	patchFields, _ := patchValue.AsObject()
	merged := make(map[string]Value, len(existing.obj)+len(patchFields))
	for k, v := range existing.obj {
		merged[k] = v
	}
	for k, v := range patchFields {
		merged[k] = v
	}
	return Set(root, path, Object(merged))
}
