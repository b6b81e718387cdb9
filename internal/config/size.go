package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ghsales/discount-engine/pkg/constants"
)

// UploadSizeBytes returns the configured spreadsheet upload limit in bytes.
func (s ServerConfig) UploadSizeBytes() (int64, error) {
	size, err := ParseSize(s.MaxUploadSize)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return constants.DefaultMaxUploadSizeBytes, nil
	}
	return size, nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into bytes.
// An empty string is the default upload size.
func ParseSize(value string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	idx := strings.LastIndexFunc(trimmed, unicode.IsDigit) + 1
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(trimmed[:idx]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var multiplier int64
	switch strings.TrimSpace(trimmed[idx:]) {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1 << 10
	case "M", "MB":
		multiplier = 1 << 20
	case "G", "GB":
		multiplier = 1 << 30
	default:
		return 0, fmt.Errorf("unsupported size unit in %q", value)
	}

	result := n * multiplier
	if n < 0 || result/multiplier != n {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return result, nil
}
