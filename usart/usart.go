// Package usart implements a buffered serial device on top of a USART
// hardware Driver.
//
// Received bytes are written by the hardware straight into the back window
// of a receive ring; the interrupt callback commits them and wakes the
// reader. Writes go through an optional transmit ring drained by the
// interrupt callback, one contiguous window per hardware transfer.
package usart

import (
	"sync"

	"github.com/mwantia/pio/circbuf"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/device"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/rtos"
)

type Device struct {
	device.Base

	log *log.Logger
	drv Driver

	rx *circbuf.Buffer
	tx *circbuf.Buffer

	rxReady *rtos.Semaphore
	txRoom  *rtos.Semaphore

	// txMu stands in for masking the USART interrupt while the transmit
	// state is inspected or changed.
	txMu   sync.Mutex
	txBusy bool

	flags        data.AccessMode
	baud         uint32
	readTimeout  rtos.Ticks
	writeTimeout rtos.Ticks
}

var _ device.Device = (*Device)(nil)

func New(name string, drv Driver, opts ...Option) (*Device, error) {
	if drv == nil {
		return nil, data.EINVAL
	}

	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.Logger == nil {
		options.Logger = log.Discard()
	}

	rx, err := circbuf.NewWithWatermarks(options.rx.size, options.rx.high, options.rx.low)
	if err != nil {
		return nil, err
	}

	d := &Device{
		Base:         device.NewBase(name),
		log:          options.Logger.Named(name),
		drv:          drv,
		rx:           rx,
		rxReady:      rtos.NewBinarySemaphore(options.Clock),
		txRoom:       rtos.NewBinarySemaphore(options.Clock),
		baud:         options.BaudRate,
		readTimeout:  options.ReadTimeout,
		writeTimeout: options.WriteTimeout,
	}

	if options.tx != nil {
		if d.tx, err = circbuf.NewWithWatermarks(options.tx.size, options.tx.high, options.tx.low); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// IsBuffered reports whether writes go through a transmit ring.
func (d *Device) IsBuffered() bool {
	return d.tx != nil
}

func (d *Device) Isatty() bool {
	return true
}

func (d *Device) Open(name string, opts data.OpenOptions) error {
	d.rx.Reset()
	if d.tx != nil {
		d.tx.Reset()
	}
	d.rxReady.Reset()
	d.txRoom.Reset()
	d.txBusy = false
	d.flags = opts.Flags

	if err := d.drv.Initialize(d.signal); err != nil {
		d.log.Error("Open: initialize failed: %v", err)
		return data.EIO
	}
	if err := d.drv.PowerControl(PowerFull); err != nil {
		d.drv.Uninitialize()
		return data.EIO
	}

	for _, c := range []struct {
		code ControlCode
		arg  uint32
	}{
		{ControlModeAsynchronous, d.baud},
		{ControlTxEnable, 1},
		{ControlRxEnable, 1},
	} {
		if err := d.drv.Control(c.code, c.arg); err != nil {
			d.log.Error("Open: control %d failed: %v", c.code, err)
			d.shutdown()
			return data.EIO
		}
	}

	if err := d.drv.Receive(d.rx.BackContiguous()); err != nil {
		d.log.Error("Open: receive failed: %v", err)
		d.shutdown()
		return data.EIO
	}

	d.log.Debug("Open: %s at %d baud", name, d.baud)
	return nil
}

func (d *Device) shutdown() error {
	d.drv.Control(ControlAbortSend, 0)
	d.drv.Control(ControlAbortReceive, 0)
	d.drv.PowerControl(PowerOff)
	return d.drv.Uninitialize()
}

func (d *Device) Close() error {
	if err := d.shutdown(); err != nil {
		d.log.Warn("Close: %v", err)
		return data.EIO
	}

	d.log.Debug("Close: %s", d.Name())
	return nil
}

// Read returns whatever is buffered, waiting only while nothing is. It never
// reports 0 after a successful wait.
func (d *Device) Read(p []byte) (int, error) {
	for {
		if n := d.rx.PopFront(p); n > 0 {
			return n, nil
		}
		if d.flags.HasNonBlock() {
			return 0, data.EAGAIN
		}
		if err := d.rxReady.Wait(d.readTimeout); err != nil {
			return 0, err
		}
	}
}

func (d *Device) Write(p []byte) (int, error) {
	if d.tx == nil {
		return d.writeDirect(p)
	}

	total := 0
	for {
		if d.tx.IsBelowHighWaterMark() {
			room := d.tx.HighWaterMark() - d.tx.Len()
			total += d.tx.PushBack(p[total:min(len(p), total+room)])
		}
		if err := d.kick(); err != nil {
			return total, err
		}
		if total == len(p) {
			return total, nil
		}
		if d.flags.HasNonBlock() {
			if total > 0 {
				return total, nil
			}
			return 0, data.EAGAIN
		}
		if err := d.txRoom.Wait(d.writeTimeout); err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
	}
}

// kick starts transmitting the front window unless a transfer is running.
func (d *Device) kick() error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	if d.txBusy {
		return nil
	}
	window := d.tx.FrontContiguous()
	if len(window) == 0 {
		return nil
	}

	d.txBusy = true
	if err := d.drv.Send(window); err != nil {
		d.txBusy = false
		return data.EIO
	}
	return nil
}

func (d *Device) writeDirect(p []byte) (int, error) {
	d.txRoom.Reset()

	d.txMu.Lock()
	d.txBusy = true
	err := d.drv.Send(p)
	if err != nil {
		d.txBusy = false
	}
	d.txMu.Unlock()
	if err != nil {
		return 0, data.EIO
	}

	if err := d.txRoom.Wait(d.writeTimeout); err != nil {
		d.drv.Control(ControlAbortSend, 0)
		d.txMu.Lock()
		d.txBusy = false
		d.txMu.Unlock()
		return 0, err
	}
	return len(p), nil
}

// signal is the interrupt callback handed to the driver.
func (d *Device) signal(event Event) {
	if event.Has(eventReceiveAny) {
		d.received(event)
	}
	if event.Has(EventSendComplete) {
		d.sent()
	}
}

func (d *Device) received(event Event) {
	n := d.rx.AdvanceBack(d.drv.RxCount())
	if !event.Has(EventReceiveComplete) {
		d.drv.Control(ControlAbortReceive, 0)
	}

	window := d.rx.BackContiguous()
	if len(window) == 0 {
		// Keep the receiver running on a full ring at the cost of the
		// newest byte.
		d.rx.RetreatBack()
		window = d.rx.BackContiguous()
	}
	d.drv.Receive(window)

	if n > 0 {
		d.rxReady.Post()
	}
}

func (d *Device) sent() {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	if d.tx == nil {
		d.txBusy = false
		d.txRoom.Post()
		return
	}

	d.tx.AdvanceFront(d.drv.TxCount())
	if window := d.tx.FrontContiguous(); len(window) > 0 {
		if d.drv.Send(window) != nil {
			d.txBusy = false
		}
	} else {
		d.txBusy = false
	}

	if d.tx.IsBelowLowWaterMark() {
		d.txRoom.Post()
	}
}

// Drain waits until the transmit ring is empty and the hardware is idle.
func (d *Device) Drain(timeout rtos.Ticks) error {
	for {
		d.txMu.Lock()
		idle := !d.txBusy && (d.tx == nil || d.tx.IsEmpty())
		d.txMu.Unlock()
		if idle {
			return nil
		}
		if err := d.txRoom.Wait(timeout); err != nil {
			return err
		}
	}
}

func (d *Device) Ioctl(req data.IoctlRequest) error {
	switch r := req.(type) {
	case *SetBaudRate:
		if r.Baud == 0 {
			return data.EINVAL
		}
		if err := d.drv.Control(ControlModeAsynchronous, r.Baud); err != nil {
			return data.EIO
		}
		d.baud = r.Baud
		return nil
	case *FlushRx:
		d.rx.AdvanceFront(d.rx.Len())
		return nil
	case *RxAvailable:
		r.Count = d.rx.Len()
		return nil
	}
	return data.ENOTTY
}

func (d *Device) Fcntl(cmd data.FcntlCommand, arg int) (int, error) {
	switch cmd {
	case data.FcntlGetFlags:
		return int(d.flags), nil
	case data.FcntlSetFlags:
		d.flags = d.flags&^data.AccessModeNonBlock | data.AccessMode(arg)&data.AccessModeNonBlock
		return 0, nil
	}
	return 0, data.EINVAL
}
