package usart

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/rtos"
)

const (
	DefaultRxBufferSize = 64
	DefaultBaudRate     = 115200
)

type bufferOptions struct {
	size int
	high int
	low  int
}

type Options struct {
	rx, tx       *bufferOptions
	ReadTimeout  rtos.Ticks
	WriteTimeout rtos.Ticks
	BaudRate     uint32
	Clock        rtos.Clock
	Logger       *log.Logger
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		rx:           &bufferOptions{size: DefaultRxBufferSize, high: DefaultRxBufferSize},
		ReadTimeout:  rtos.Forever,
		WriteTimeout: rtos.Forever,
		BaudRate:     DefaultBaudRate,
		Clock:        rtos.DefaultClock,
	}
}

// WithRxBuffer sizes the receive ring.
func WithRxBuffer(size, high, low int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return data.EINVAL
		}
		if high <= 0 {
			high = size
		}
		o.rx = &bufferOptions{size: size, high: high, low: low}
		return nil
	}
}

// WithTxBuffer enables buffered writes. Without it every write is handed to
// the hardware directly and waits for its completion.
func WithTxBuffer(size, high, low int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return data.EINVAL
		}
		if high <= 0 {
			high = size
		}
		o.tx = &bufferOptions{size: size, high: high, low: low}
		return nil
	}
}

func WithReadTimeout(timeout rtos.Ticks) Option {
	return func(o *Options) error {
		o.ReadTimeout = timeout
		return nil
	}
}

func WithWriteTimeout(timeout rtos.Ticks) Option {
	return func(o *Options) error {
		o.WriteTimeout = timeout
		return nil
	}
}

func WithBaudRate(baud uint32) Option {
	return func(o *Options) error {
		if baud == 0 {
			return data.EINVAL
		}
		o.BaudRate = baud
		return nil
	}
}

func WithClock(clock rtos.Clock) Option {
	return func(o *Options) error {
		o.Clock = clock
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}
