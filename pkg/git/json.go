package git

import "encoding/json"

// Canonical JSON: UTF-8, sorted keys, two-space indent, no trailing space
// before a newline. encoding/json sorts map keys and never emits trailing
// spaces, so MarshalIndent over object forms is the canonical encoding.
// Round-tripping canonical bytes through BytesToObj and ObjToBytes is
// byte-stable.

// ObjToBytes encodes v as canonical JSON.
func ObjToBytes(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// BytesToObj decodes canonical JSON into v.
func BytesToObj(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
