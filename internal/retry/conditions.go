package retry

// RetryCondition defines when a retry should be attempted. err is the
// transport error of the attempt, statusCode the upstream status when the
// backend answered.
type RetryCondition interface {
	ShouldRetry(err error, statusCode int) bool
}

// StatusCodeCondition retries on specific upstream status codes.
type StatusCodeCondition struct {
	codes map[int]bool
}

// RetryOnStatusCodes creates a condition that retries on the given 5xx
// status codes. Codes outside 500-599 are ignored.
func RetryOnStatusCodes(statusCodes ...int) *StatusCodeCondition {
	codeMap := make(map[int]bool, len(statusCodes))
	for _, code := range statusCodes {
		if code >= 500 && code <= 599 {
			codeMap[code] = true
		}
	}
	return &StatusCodeCondition{codes: codeMap}
}

// ShouldRetry implements RetryCondition.
func (c *StatusCodeCondition) ShouldRetry(err error, statusCode int) bool {
	return err == nil && c.codes[statusCode]
}

// Contains reports whether code is in the set.
func (c *StatusCodeCondition) Contains(code int) bool {
	return c.codes[code]
}

// DefaultRetryableStatusCodes returns the 5xx statuses retried by default.
func DefaultRetryableStatusCodes() []int {
	return []int{500, 502, 503, 504}
}

// TransportErrorCondition retries any attempt that produced no response:
// refused or reset connections, timeouts, malformed bodies.
type TransportErrorCondition struct{}

// RetryOnTransportErrors creates a condition that retries transport failures.
func RetryOnTransportErrors() *TransportErrorCondition {
	return &TransportErrorCondition{}
}

// ShouldRetry implements RetryCondition.
func (c *TransportErrorCondition) ShouldRetry(err error, _ int) bool {
	return err != nil
}

// CompositeCondition combines multiple conditions with OR logic.
type CompositeCondition struct {
	conditions []RetryCondition
}

// RetryOnAny creates a condition that retries if any of the conditions match.
func RetryOnAny(conditions ...RetryCondition) *CompositeCondition {
	return &CompositeCondition{conditions: conditions}
}

// ShouldRetry implements RetryCondition.
func (c *CompositeCondition) ShouldRetry(err error, statusCode int) bool {
	for _, condition := range c.conditions {
		if condition.ShouldRetry(err, statusCode) {
			return true
		}
	}
	return false
}
