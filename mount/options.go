package mount

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/log"
)

const DefaultMaxMounts = 4

type ManagerOptions struct {
	MaxMounts     int
	LongestPrefix bool
	Logger        *log.Logger
}

type ManagerOption func(*ManagerOptions) error

func newDefaultManagerOptions() *ManagerOptions {
	return &ManagerOptions{
		MaxMounts:     DefaultMaxMounts,
		LongestPrefix: false,
	}
}

// WithMaxMounts sets the number of prefix slots, the root not included.
func WithMaxMounts(n int) ManagerOption {
	return func(o *ManagerOptions) error {
		if n < 0 {
			return data.EINVAL
		}
		o.MaxMounts = n
		return nil
	}
}

// WithLongestPrefixMatch makes Identify pick the longest matching prefix
// instead of the first one in slot order.
func WithLongestPrefixMatch() ManagerOption {
	return func(o *ManagerOptions) error {
		o.LongestPrefix = true
		return nil
	}
}

func WithLogger(logger *log.Logger) ManagerOption {
	return func(o *ManagerOptions) error {
		o.Logger = logger
		return nil
	}
}
