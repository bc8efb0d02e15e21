package usart

// SetBaudRate reconfigures the line speed of an open device.
type SetBaudRate struct {
	Baud uint32
}

func (*SetBaudRate) IoctlName() string {
	return "TIOCSBAUD"
}

// FlushRx discards every received byte not read yet.
type FlushRx struct{}

func (*FlushRx) IoctlName() string {
	return "TCIFLUSH"
}

// RxAvailable reports how many received bytes can be read without waiting.
type RxAvailable struct {
	Count int
}

func (*RxAvailable) IoctlName() string {
	return "FIONREAD"
}
