package message

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// fields reads typed values out of a gjson document and keeps the first
// failure, so an extractor can read everything and check once at the end
type fields struct {
	root gjson.Result
	err  error
}

func newFields(root gjson.Result) *fields {
	return &fields{root: root}
}

func (f *fields) fail(path, want string, got gjson.Result) {
	if f.err != nil {
		return
	}
	if !got.Exists() {
		f.err = fmt.Errorf("%s: missing, want %s", path, want)
		return
	}
	f.err = fmt.Errorf("%s: want %s, got %s", path, want, got.Type.String())
}

func (f *fields) get(path string) gjson.Result {
	return f.root.Get(path)
}

func asUint(res gjson.Result) (uint64, bool) {
	if res.Type != gjson.Number {
		return 0, false
	}
	v, err := strconv.ParseUint(res.Raw, 10, 64)
	return v, err == nil
}

func (f *fields) Uint(path string) uint64 {
	res := f.get(path)
	v, ok := asUint(res)
	if !ok {
		f.fail(path, "unsigned integer", res)
	}
	return v
}

// OptUint accepts a missing or null value, anything else must be an unsigned integer
func (f *fields) OptUint(path string) uint64 {
	res := f.get(path)
	if res.Type == gjson.Null {
		return 0
	}
	v, ok := asUint(res)
	if !ok {
		f.fail(path, "unsigned integer", res)
	}
	return v
}

func (f *fields) Float(path string) float64 {
	res := f.get(path)
	if res.Type != gjson.Number {
		f.fail(path, "number", res)
		return 0
	}
	return res.Num
}

func (f *fields) String(path string) string {
	res := f.get(path)
	if res.Type != gjson.String {
		f.fail(path, "string", res)
		return ""
	}
	return res.Str
}

func (f *fields) OptString(path string) string {
	res := f.get(path)
	switch res.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return res.Str
	}
	f.fail(path, "string", res)
	return ""
}

// Flag must exist, it is set when the value is the number 1 or true
func (f *fields) Flag(path string) bool {
	res := f.get(path)
	if !res.Exists() {
		f.fail(path, "flag", res)
		return false
	}
	if v, ok := asUint(res); ok {
		return v == 1
	}
	return res.Type == gjson.True
}

func (f *fields) Array(path string) []gjson.Result {
	res := f.get(path)
	if !res.IsArray() {
		f.fail(path, "array", res)
		return nil
	}
	return res.Array()
}

// OptObject returns a non-existent result for missing or null values
func (f *fields) OptObject(path string) gjson.Result {
	res := f.get(path)
	if res.Type == gjson.Null {
		return gjson.Result{}
	}
	if !res.IsObject() {
		f.fail(path, "object", res)
		return gjson.Result{}
	}
	return res
}

// OptID reads identifiers the relay sends either as string or as number
func (f *fields) OptID(path string) string {
	res := f.get(path)
	switch res.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return res.Str
	case gjson.Number:
		return res.Raw
	}
	f.fail(path, "identifier", res)
	return ""
}
