package cache

import "strconv"

// TopStrategiesKey returns the cache key of a top strategies ranking.
func TopStrategiesKey(limit int) string {
	return "top-strategies:limit=" + strconv.Itoa(limit)
}
