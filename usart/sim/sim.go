// Package sim simulates USART hardware. Completions are signalled from their
// own goroutines, which play the part of the interrupt handler: at most one
// callback runs at a time and never on the caller's goroutine.
package sim

import (
	"bytes"
	"io"
	"sync"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/usart"
)

type USART struct {
	// irq serializes callbacks like a single interrupt line.
	irq sync.Mutex
	mu  sync.Mutex

	cb        usart.SignalEvent
	powered   bool
	baud      uint32
	rxEnabled bool
	txEnabled bool

	rxBuf    []byte
	rxCount  int
	rxActive bool
	pending  []byte

	txBusy  bool
	txCount int
	txGen   int
	gate    chan struct{}

	out  io.Writer
	sent bytes.Buffer
}

var _ usart.Driver = (*USART)(nil)

type Option func(*USART)

// WithOutput forwards transmitted bytes to w instead of recording them.
func WithOutput(w io.Writer) Option {
	return func(s *USART) {
		s.out = w
	}
}

func New(opts ...Option) *USART {
	s := &USART{
		gate: make(chan struct{}),
	}
	close(s.gate)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *USART) Initialize(cb usart.SignalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cb = cb
	return nil
}

func (s *USART) Uninitialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cb = nil
	s.powered = false
	s.rxActive = false
	s.txBusy = false
	s.txGen++
	return nil
}

func (s *USART) PowerControl(state usart.PowerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cb == nil && state != usart.PowerOff {
		return data.EIO
	}
	s.powered = state == usart.PowerFull
	return nil
}

func (s *USART) Control(code usart.ControlCode, arg uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch code {
	case usart.ControlModeAsynchronous:
		if arg == 0 {
			return data.EINVAL
		}
		s.baud = arg
	case usart.ControlTxEnable:
		s.txEnabled = arg != 0
	case usart.ControlRxEnable:
		s.rxEnabled = arg != 0
	case usart.ControlAbortSend:
		s.txBusy = false
		s.txGen++
	case usart.ControlAbortReceive:
		s.rxActive = false
	default:
		return data.ENOSYS
	}
	return nil
}

func (s *USART) Status() usart.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return usart.Status{
		TxBusy: s.txBusy,
		RxBusy: s.rxActive,
	}
}

func (s *USART) RxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rxCount
}

func (s *USART) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.txCount
}

func (s *USART) Receive(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.powered || !s.rxEnabled {
		return data.EIO
	}
	if len(p) == 0 {
		return data.EINVAL
	}
	if s.rxActive {
		return data.EBUSY
	}

	s.rxBuf = p
	s.rxCount = 0
	s.rxActive = true
	if len(s.pending) > 0 {
		go s.deliver()
	}
	return nil
}

// Inject puts bytes on the receive line. They are delivered into the active
// receive request, or held until one is queued.
func (s *USART) Inject(p []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, p...)
	s.mu.Unlock()

	go s.deliver()
}

func (s *USART) deliver() {
	s.irq.Lock()
	defer s.irq.Unlock()

	for {
		s.mu.Lock()
		if !s.rxActive || len(s.pending) == 0 || s.cb == nil {
			s.mu.Unlock()
			return
		}

		n := copy(s.rxBuf[s.rxCount:], s.pending)
		s.pending = s.pending[n:]
		s.rxCount += n

		event := usart.EventRxTimeout
		if s.rxCount == len(s.rxBuf) {
			event = usart.EventReceiveComplete
			s.rxActive = false
		}
		cb := s.cb
		s.mu.Unlock()

		cb(event)
	}
}

func (s *USART) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.powered || !s.txEnabled {
		return data.EIO
	}
	if s.txBusy {
		return data.EBUSY
	}

	s.txBusy = true
	s.txCount = 0
	gen := s.txGen
	gate := s.gate

	go func() {
		<-gate

		s.irq.Lock()
		defer s.irq.Unlock()

		s.mu.Lock()
		if gen != s.txGen || s.cb == nil {
			s.mu.Unlock()
			return
		}
		if s.out != nil {
			s.out.Write(p)
		} else {
			s.sent.Write(p)
		}
		s.txCount = len(p)
		s.txBusy = false
		cb := s.cb
		s.mu.Unlock()

		cb(usart.EventSendComplete)
	}()
	return nil
}

// HoldTx stalls transmit completions until ReleaseTx.
func (s *USART) HoldTx() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gate = make(chan struct{})
}

func (s *USART) ReleaseTx() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.gate:
	default:
		close(s.gate)
	}
}

// Sent returns a copy of every transmitted byte so far.
func (s *USART) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return bytes.Clone(s.sent.Bytes())
}

func (s *USART) Baud() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.baud
}
