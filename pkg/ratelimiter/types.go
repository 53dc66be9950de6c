package ratelimiter

import "time"

// Result contains the result of a rate limit check.
type Result struct {
	Limit      int           // Maximum tokens (bucket capacity)
	Remaining  int           // Whole tokens remaining; negative when denied
	RetryAfter time.Duration // Wait until enough tokens are available; zero when allowed
}

// Allowed returns whether the request is allowed based on remaining tokens.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// Config defines the token bucket configuration. Tokens refill continuously
// at RefillRate per RefillInterval, up to Capacity.
type Config struct {
	Capacity       int           `yaml:"capacity"`        // Maximum tokens the bucket can hold (burst limit)
	RefillRate     int           `yaml:"refill_rate"`     // Number of tokens added per refill interval
	RefillInterval time.Duration `yaml:"refill_interval"` // Interval over which RefillRate tokens are added
}

// tokensPerNanosecond is the continuous refill rate.
func (c Config) tokensPerNanosecond() float64 {
	return float64(c.RefillRate) / float64(c.RefillInterval)
}
