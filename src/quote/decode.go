package quote

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	errNotObject       = errors.New("payload is not a JSON object")
	errMissingResponse = errors.New("payload has no 'response' field")
)

// -----------------------------------------------------------------------------

// DecodeMTMPayload extracts the absolute MTM from a terminal body. Some
// terminals serialize their JSON twice, so a top-level string is decoded once
// more before giving up.
func DecodeMTMPayload(raw []byte) (float64, error) {
	var v interface{}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("malformed payload: %w", err)
	}

	if s, ok := v.(string); ok {
		if err := sonic.UnmarshalString(s, &v); err != nil {
			return 0, fmt.Errorf("malformed inner payload: %w", err)
		}
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return 0, errNotObject
	}
	field, ok := obj["response"]
	if !ok || field == nil {
		return 0, errMissingResponse
	}

	var value float64
	switch f := field.(type) {
	case float64:
		value = f
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric 'response' %q", f)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("unsupported 'response' type %T", field)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite 'response' %v", value)
	}
	return value, nil
}
