// internal/nlu/intent-classifier/config.go
package intentclassifier

import "time"

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:    10 * time.Second,
		MaxRetries: 2,
	}
}
