package authapi

import "time"

// Config controls auth API limits. Zero maxima disable the matching throttle.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	LoginIPMax   int
	LoginUserMax int
	LoginWindow  time.Duration
}

// DefaultConfig returns the shipped limits.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 1 << 20,
		LoginIPMax:   20,
		LoginUserMax: 5,
		LoginWindow:  15 * time.Minute,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.LoginWindow <= 0 {
		c.LoginWindow = d.LoginWindow
	}
	return c
}
