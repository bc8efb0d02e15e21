package usart_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/rtos"
	"github.com/mwantia/pio/usart"
	"github.com/mwantia/pio/usart/sim"
)

func openDevice(t *testing.T, hw *sim.USART, opts ...usart.Option) *usart.Device {
	t.Helper()

	dev, err := usart.New("usart1", hw, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := dev.Open("usart1", data.ReadWrite()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestDevice_ReadWakesOnce(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithReadTimeout(1000))

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	buf := make([]byte, 32)
	go func() {
		n, err := dev.Read(buf)
		done <- result{n, err}
	}()

	time.Sleep(10 * time.Millisecond)
	hw.Inject([]byte("0123456789"))

	select {
	case r := <-done:
		if r.err != nil || r.n != 10 {
			t.Fatalf("Read = %d, %v; want 10, nil", r.n, r.err)
		}
		if string(buf[:10]) != "0123456789" {
			t.Errorf("Read %q", buf[:10])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return")
	}
}

func TestDevice_ReadTimeout(t *testing.T) {
	dev := openDevice(t, sim.New(), usart.WithReadTimeout(5))

	if _, err := dev.Read(make([]byte, 4)); !errors.Is(err, data.ETIMEDOUT) {
		t.Errorf("Expected ETIMEDOUT, got %v", err)
	}
}

func TestDevice_NonBlockingRead(t *testing.T) {
	dev := openDevice(t, sim.New())

	if _, err := dev.Fcntl(data.FcntlSetFlags, int(data.AccessModeNonBlock)); err != nil {
		t.Fatalf("Fcntl failed: %v", err)
	}
	if _, err := dev.Read(make([]byte, 4)); !errors.Is(err, data.EAGAIN) {
		t.Errorf("Expected EAGAIN, got %v", err)
	}
}

func TestDevice_ReceiveWrapsRing(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithRxBuffer(16, 16, 0), usart.WithReadTimeout(1000))

	var got []byte
	buf := make([]byte, 5)
	for round := 0; round < 4; round++ {
		chunk := []byte{byte('a' + round*5), byte('b' + round*5), byte('c' + round*5), byte('d' + round*5), byte('e' + round*5)}
		hw.Inject(chunk)

		want := len(got) + len(chunk)
		for len(got) < want {
			n, err := dev.Read(buf)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			got = append(got, buf[:n]...)
		}
	}

	if string(got) != "abcdefghijklmnopqrst" {
		t.Errorf("Received %q", got)
	}
}

func TestDevice_FullRingDropsNewest(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithRxBuffer(8, 8, 0))

	hw.Inject([]byte("0123456789"))

	avail := &usart.RxAvailable{}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := dev.Ioctl(avail); err != nil {
			t.Fatalf("Ioctl failed: %v", err)
		}
		if avail.Count >= 7 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	buf := make([]byte, 16)
	n, err := dev.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n < 7 || n > 8 || string(buf[:7]) != "0123456" {
		t.Errorf("Full ring returned %q", buf[:n])
	}
}

func TestDevice_UnbufferedWrite(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithWriteTimeout(1000))

	if dev.IsBuffered() {
		t.Fatal("Device without tx buffer must be unbuffered")
	}
	n, err := dev.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if string(hw.Sent()) != "hello" {
		t.Errorf("Sent %q", hw.Sent())
	}
}

func TestDevice_BufferedWrite(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithTxBuffer(16, 12, 4), usart.WithWriteTimeout(2000))

	payload := bytes.Repeat([]byte("0123456789"), 10)
	n, err := dev.Write(payload)
	if err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if err := dev.Drain(2000); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !bytes.Equal(hw.Sent(), payload) {
		t.Errorf("Sent %q", hw.Sent())
	}
}

func TestDevice_BufferedWriteTimesOut(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithTxBuffer(8, 8, 0), usart.WithWriteTimeout(10))

	hw.HoldTx()
	defer hw.ReleaseTx()

	n, err := dev.Write(bytes.Repeat([]byte("x"), 20))
	if err != nil || n != 8 {
		t.Errorf("Write = %d, %v; want 8, nil", n, err)
	}
	if _, err := dev.Write([]byte("y")); !errors.Is(err, data.ETIMEDOUT) {
		t.Errorf("Expected ETIMEDOUT on a full ring, got %v", err)
	}
}

func TestDevice_Ioctl(t *testing.T) {
	hw := sim.New()
	dev := openDevice(t, hw, usart.WithBaudRate(9600))

	if hw.Baud() != 9600 {
		t.Errorf("Open configured %d baud", hw.Baud())
	}
	if err := dev.Ioctl(&usart.SetBaudRate{Baud: 57600}); err != nil || hw.Baud() != 57600 {
		t.Errorf("SetBaudRate = %d, %v", hw.Baud(), err)
	}
	if err := dev.Ioctl(&usart.SetBaudRate{}); !errors.Is(err, data.EINVAL) {
		t.Errorf("Expected EINVAL, got %v", err)
	}

	hw.Inject([]byte("stale"))
	time.Sleep(20 * time.Millisecond)
	if err := dev.Ioctl(&usart.FlushRx{}); err != nil {
		t.Fatalf("FlushRx failed: %v", err)
	}
	avail := &usart.RxAvailable{}
	dev.Ioctl(avail)
	if avail.Count != 0 {
		t.Errorf("%d bytes left after flush", avail.Count)
	}

	if !dev.Isatty() {
		t.Error("Serial device must be a tty")
	}
	var st data.Stat
	if err := dev.Fstat(&st); err != nil || !st.Mode.IsCharDevice() {
		t.Errorf("Fstat = %v, %v", st.Mode, err)
	}
}

func TestDevice_InvalidOptions(t *testing.T) {
	if _, err := usart.New("u", nil); !errors.Is(err, data.EINVAL) {
		t.Errorf("Expected EINVAL for nil driver, got %v", err)
	}
	if _, err := usart.New("u", sim.New(), usart.WithRxBuffer(8, 4, 6)); err == nil {
		t.Error("Expected error for low above high watermark")
	}
	if _, err := usart.New("u", sim.New(), usart.WithReadTimeout(rtos.NoWait)); err != nil {
		t.Errorf("New failed: %v", err)
	}
}
