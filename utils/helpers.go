// api/utils/helpers.go
package utils

import (
	"fmt"
	"time"
)

// ParseDateParam parses a YYYY-MM-DD query parameter as a UTC midnight instant.
func ParseDateParam(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be a date in YYYY-MM-DD form: %w", err)
	}
	return t.UTC(), nil
}

// ClampInt bounds n to [min, max].
func ClampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
