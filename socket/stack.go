package socket

import (
	"net"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/pool"
)

const DefaultSockets = 4

// Stack owns the pooled sockets of one protocol implementation.
type Stack struct {
	log     *log.Logger
	sockets *pool.Pool[*handle.Handle]
}

// NewStack builds capacity sockets with factory.
func NewStack(capacity int, factory func() Socket, logger *log.Logger) *Stack {
	if logger == nil {
		logger = log.Discard()
	}

	s := &Stack{log: logger}
	s.sockets = pool.New(capacity, func(int) *handle.Handle {
		h := handle.New(handle.KindSocket, factory())
		h.SetReleaser(s.release)
		return h
	})
	return s
}

func (s *Stack) release(h *handle.Handle) bool {
	return s.sockets.Release(h)
}

func (s *Stack) acquire() (*handle.Handle, error) {
	h, ok := s.sockets.Acquire()
	if !ok {
		s.log.Warn("Socket: all %d sockets in use", s.sockets.Capacity())
		return nil, data.ENOSR
	}
	h.SetFlags(data.AccessModeReadWrite)
	return h, nil
}

// Socket acquires a socket and runs its open hook.
func (s *Stack) Socket(domain, typ, protocol int) (*handle.Handle, error) {
	h, err := s.acquire()
	if err != nil {
		return nil, err
	}

	if err := h.Impl().(Socket).Open(domain, typ, protocol); err != nil {
		s.sockets.Release(h)
		return nil, err
	}

	s.log.Debug("Socket: opened domain=%d type=%d protocol=%d", domain, typ, protocol)
	return h, nil
}

// Accept acquires the socket for the next connection pending on listener.
func (s *Stack) Accept(listener Socket) (*handle.Handle, net.Addr, error) {
	h, err := s.acquire()
	if err != nil {
		return nil, nil, err
	}

	addr, err := listener.Accept(h.Impl().(Socket))
	if err != nil {
		s.sockets.Release(h)
		return nil, nil, err
	}

	s.log.Debug("Accept: connection from %v", addr)
	return h, addr, nil
}

// InUse returns the number of acquired sockets.
func (s *Stack) InUse() int {
	return s.sockets.InUse()
}
