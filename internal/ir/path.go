package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path ("action.payload.user.roles.0") against v.
// Numeric segments index arrays. Returns false when any segment is missing.
func Lookup(v IRValue, path string) (IRValue, bool) {
	if path == "" {
		return v, v != nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case IRObject:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case IRArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of obj with value stored at the dotted path. Objects
// along the path are copied, so snapshots that share structure with obj are
// never modified. Missing intermediate objects are created.
func Set(obj IRObject, path string, value IRValue) (IRObject, error) {
	if path == "" {
		return nil, fmt.Errorf("set: empty path")
	}
	return setSegments(obj, strings.Split(path, "."), value, path)
}

func setSegments(obj IRObject, segs []string, value IRValue, full string) (IRObject, error) {
	out := obj.Clone()
	head := segs[0]
	if head == "" {
		return nil, fmt.Errorf("set %q: empty path segment", full)
	}
	if len(segs) == 1 {
		out[head] = value
		return out, nil
	}

	var child IRObject
	switch existing := obj[head].(type) {
	case nil, IRNull:
		child = IRObject{}
	case IRObject:
		child = existing
	default:
		return nil, fmt.Errorf("set %q: segment %q is %T, not an object", full, head, existing)
	}

	updated, err := setSegments(child, segs[1:], value, full)
	if err != nil {
		return nil, err
	}
	out[head] = updated
	return out, nil
}

// Delete returns a copy of obj without the value at path. Deleting a missing
// path returns an unchanged copy.
func Delete(obj IRObject, path string) IRObject {
	segs := strings.Split(path, ".")
	out := obj.Clone()
	if len(segs) == 1 {
		delete(out, segs[0])
		return out
	}
	child, ok := obj[segs[0]].(IRObject)
	if !ok {
		return out
	}
	out[segs[0]] = Delete(child, strings.Join(segs[1:], "."))
	return out
}
