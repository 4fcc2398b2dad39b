package orders

import (
	"fmt"
	"time"
)

// NewOrderID builds the human-facing order identifier: the order date as
// DDMMYY plus a 4-digit random suffix, e.g. "310825-4821". The suffix space
// is small, so callers must treat a duplicate-id rejection from the store as
// a cue to regenerate.
func NewOrderID(now time.Time, randInt func(n int) int) string {
	return fmt.Sprintf("%s-%04d", now.Format("020106"), randInt(10000))
}
