package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errMissingPayload = errors.New("missing payload")
	errNotNumber      = errors.New("value is not a number")
	errNotFinite      = errors.New("value is not finite")
)

// decode unmarshals a handler payload. An absent or null payload is an error
// so handlers never see zero-valued requests they did not ask for.
func decode(data json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return errMissingPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

// parseNumber accepts a JSON number or a string holding one. Clients built
// on form inputs send both.
func parseNumber(raw json.RawMessage) (float64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, errNotNumber
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		trimmed = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, errNotNumber
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// parseDirection reads a vote direction. Only the integers -1, 0 and 1 are
// accepted.
func parseDirection(raw json.RawMessage) (int, error) {
	v, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || v < -1 || v > 1 {
		return 0, fmt.Errorf("direction %v is not -1, 0 or 1", v)
	}
	return int(v), nil
}
