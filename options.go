package pio

import (
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/device"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/mount"
	"github.com/mwantia/pio/socket"
)

const (
	DefaultMaxOpenFiles = 16
	DefaultMaxDevices   = 8
)

type RuntimeOptions struct {
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool
	Logger        *log.Logger

	MaxOpenFiles  int
	DevicePrefix  string
	MaxDevices    int
	MaxMounts     int
	LongestPrefix bool
	Sockets       *socket.Stack
}

type RuntimeOption func(*RuntimeOptions) error

func newDefaultRuntimeOptions() *RuntimeOptions {
	return &RuntimeOptions{
		LogLevel:     log.Info,
		MaxOpenFiles: DefaultMaxOpenFiles,
		DevicePrefix: device.DefaultPrefix,
		MaxDevices:   DefaultMaxDevices,
		MaxMounts:    mount.DefaultMaxMounts,
	}
}

func WithLogLevel(logLevel log.LogLevel) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() RuntimeOption {
	return func(opts *RuntimeOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithLogFile(logFile string) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

// WithLogger replaces the logger built from level, file and terminal
// options.
func WithLogger(logger *log.Logger) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		opts.Logger = logger
		return nil
	}
}

// WithMaxOpenFiles sets the descriptor table size, the three standard
// stream slots included.
func WithMaxOpenFiles(n int) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		if n <= 3 {
			return data.EINVAL
		}
		opts.MaxOpenFiles = n
		return nil
	}
}

func WithDevicePrefix(prefix string) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		if prefix == "" || prefix[0] != '/' {
			return data.EINVAL
		}
		opts.DevicePrefix = prefix
		return nil
	}
}

func WithMaxDevices(n int) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		if n <= 0 {
			return data.EINVAL
		}
		opts.MaxDevices = n
		return nil
	}
}

func WithMaxMounts(n int) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		if n < 0 {
			return data.EINVAL
		}
		opts.MaxMounts = n
		return nil
	}
}

// WithLongestPrefixMatch resolves nested mount prefixes to the longest one
// instead of the first mounted.
func WithLongestPrefixMatch() RuntimeOption {
	return func(opts *RuntimeOptions) error {
		opts.LongestPrefix = true
		return nil
	}
}

// WithSocketStack enables the socket calls.
func WithSocketStack(stack *socket.Stack) RuntimeOption {
	return func(opts *RuntimeOptions) error {
		opts.Sockets = stack
		return nil
	}
}
