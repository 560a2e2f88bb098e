package handler

import (
	"encoding/json"
	"math"

	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
)

// stringArg returns "" for absent or null arguments and an error for any
// non-string value.
func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fault.New(fault.InvalidParameter, "%s must be a string", name)
	}
	return s, nil
}

// intArg accepts the numeric shapes a JSON decoder may produce, as long as the
// value is integral.
func intArg(args map[string]any, name string) (*int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, fault.New(fault.InvalidParameter, "%s must be a number", name)
		}
		f = parsed
	default:
		return nil, fault.New(fault.InvalidParameter, "%s must be a number", name)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fault.New(fault.InvalidParameter, "%s must be a whole number", name)
	}
	i := int(f)
	return &i, nil
}
