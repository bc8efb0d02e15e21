package usart

// Event is the bit set a Driver reports to its SignalEvent callback.
type Event uint32

const (
	EventSendComplete Event = 1 << iota
	EventReceiveComplete
	EventTransferComplete
	EventTxComplete
	EventTxUnderflow
	EventRxOverflow
	EventRxTimeout
	EventRxBreak
	EventRxFramingError
	EventRxParityError
)

const eventReceiveAny = EventReceiveComplete | EventRxOverflow | EventRxTimeout |
	EventRxBreak | EventRxFramingError | EventRxParityError

func (e Event) Has(other Event) bool {
	return e&other != 0
}

// SignalEvent runs in interrupt context. It must not block.
type SignalEvent func(event Event)

type PowerState int

const (
	PowerOff PowerState = iota
	PowerLow
	PowerFull
)

type ControlCode uint32

const (
	// ControlModeAsynchronous configures asynchronous mode, arg is the baud
	// rate.
	ControlModeAsynchronous ControlCode = iota + 1
	ControlTxEnable
	ControlRxEnable
	ControlAbortSend
	ControlAbortReceive
)

type Status struct {
	TxBusy         bool
	RxBusy         bool
	TxUnderflow    bool
	RxOverflow     bool
	RxBreak        bool
	RxFramingError bool
	RxParityError  bool
}

// Driver is the hardware entry point set of a USART peripheral. Send and
// Receive only start a transfer; completion is reported through the
// SignalEvent callback given to Initialize.
type Driver interface {
	Initialize(cb SignalEvent) error
	Uninitialize() error
	PowerControl(state PowerState) error
	// Send starts transmitting p. p stays untouched by the caller until
	// EventSendComplete was signalled.
	Send(p []byte) error
	// Receive starts receiving into p. Bytes land in p directly, RxCount
	// reports how many arrived in the current request.
	Receive(p []byte) error
	Control(code ControlCode, arg uint32) error
	Status() Status
	RxCount() int
	TxCount() int
}
