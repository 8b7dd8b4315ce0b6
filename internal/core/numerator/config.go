// Package numerator provides domain contracts for document numbering.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "FAC")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns yearly numbering in the PREFIX-YYYY-00001 form.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Key returns the counter key for cfg in the given period.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders the counter value num as a document number.
func (c Config) Format(period time.Time, num int64) string {
	padWidth := c.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, padWidth, num)
}

// ParseNumber extracts the counter value from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	idx := strings.LastIndex(formatted, "-")
	if idx < 0 || idx == len(formatted)-1 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[idx+1:], 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
