package extractor

import (
	"github.com/tidwall/gjson"
)

func isObject(raw []byte) bool {
	if !gjson.ValidBytes(raw) {
		return false
	}
	return gjson.ParseBytes(raw).IsObject()
}

// numericField reads f.Path and checks it is a finite, in-range number.
func numericField(raw []byte, f Field) (float64, error) {
	result := gjson.GetBytes(raw, f.Path)
	switch {
	case !result.Exists():
		return 0, &FieldError{Field: f.Name, Path: f.Path, Reason: "is missing"}
	case result.Type == gjson.Null:
		return 0, &FieldError{Field: f.Name, Path: f.Path, Reason: "is null"}
	case result.Type != gjson.Number:
		return 0, &FieldError{Field: f.Name, Path: f.Path, Reason: "is not a number"}
	}

	v := result.Float()
	if v < 0 || (f.Max > 0 && v > f.Max) {
		return 0, &FieldError{Field: f.Name, Path: f.Path, Reason: "is out of range: " + result.Raw}
	}
	return v, nil
}

func runtimeError(raw []byte) *RuntimeError {
	block := gjson.GetBytes(raw, "runtimeError")
	if !block.Exists() || !block.IsObject() {
		return nil
	}
	code := block.Get("code").String()
	if code == "" || code == "NO_ERROR" {
		return nil
	}
	return &RuntimeError{Code: code, Message: block.Get("message").String()}
}

func findString(raw []byte, path string) string {
	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return ""
	}
	return result.String()
}

func firstString(raw []byte, paths ...string) string {
	for _, p := range paths {
		if v := findString(raw, p); v != "" {
			return v
		}
	}
	return ""
}
