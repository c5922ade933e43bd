package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/iwvelando/microloan/pkg/constants"
)

// ParseSize converts a human-friendly byte string (e.g., "256K", "1MB") into bytes.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return constants.DefaultMaxBodyBytes, nil
	}

	upper := strings.ToUpper(trimmed)
	idx := len(upper)
	for idx > 0 && !unicode.IsDigit(rune(upper[idx-1])) {
		idx--
	}
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(upper[:idx]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var shift uint
	switch unit := strings.TrimSpace(upper[idx:]); unit {
	case "", "B":
	case "K", "KB":
		shift = 10
	case "M", "MB":
		shift = 20
	default:
		return 0, fmt.Errorf("unsupported size unit %q", unit)
	}

	result := n << shift
	if result < 0 || result>>shift != n {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return result, nil
}
