package helpers

import "time"

// MillisecondDefault converts config integer value, zero means def.
func MillisecondDefault(x int, def time.Duration) time.Duration {
	if x == 0 {
		return def
	}
	return time.Duration(x) * time.Millisecond
}
