package socket

import (
	"errors"
	"net"
	"testing"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fdtable"
	"github.com/mwantia/pio/handle"
)

type stubSocket struct {
	Unimplemented
	domain   int
	bound    net.Addr
	peer     net.Addr
	pending  []net.Addr
	failOpen bool
}

func (s *stubSocket) Open(domain, typ, protocol int) error {
	if s.failOpen {
		return data.EINVAL
	}
	s.domain = domain
	return nil
}

func (s *stubSocket) Bind(addr net.Addr) error {
	s.bound = addr
	return nil
}

func (s *stubSocket) Accept(conn Socket) (net.Addr, error) {
	if len(s.pending) == 0 {
		return nil, data.EAGAIN
	}
	addr := s.pending[0]
	s.pending = s.pending[1:]
	conn.(*stubSocket).peer = addr
	return addr, nil
}

func newStack(n int) (*Stack, []*stubSocket) {
	var socks []*stubSocket
	stack := NewStack(n, func() Socket {
		s := &stubSocket{}
		socks = append(socks, s)
		return s
	}, nil)
	return stack, socks
}

func TestStack_SocketAndAccept(t *testing.T) {
	stack, socks := newStack(2)
	fds := fdtable.New(8, nil)

	h, err := stack.Socket(2, 1, 0)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	if _, err := fds.Alloc(h); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	listener, err := Of(h)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 80}
	if err := listener.Bind(addr); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if _, _, err := stack.Accept(listener); !errors.Is(err, data.EAGAIN) {
		t.Fatalf("Expected EAGAIN without pending connections, got %v", err)
	}
	if stack.InUse() != 1 {
		t.Fatalf("Failed accept leaked a socket, %d in use", stack.InUse())
	}

	peer := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 4242}
	socks[0].pending = append(socks[0].pending, peer)
	conn, got, err := stack.Accept(listener)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if got.String() != peer.String() || socks[1].peer != peer {
		t.Errorf("Accept returned %v", got)
	}
	if conn.Kind() != handle.KindSocket {
		t.Errorf("Unexpected kind %s", conn.Kind())
	}

	if _, err := stack.Socket(2, 1, 0); !errors.Is(err, data.ENOSR) {
		t.Errorf("Expected ENOSR, got %v", err)
	}

	if err := h.Close(fds); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if stack.InUse() != 1 {
		t.Errorf("Close did not return the socket, %d in use", stack.InUse())
	}
}

func TestStack_FailedOpenReleases(t *testing.T) {
	stack, socks := newStack(1)
	socks[0].failOpen = true

	if _, err := stack.Socket(2, 1, 0); !errors.Is(err, data.EINVAL) {
		t.Fatalf("Expected EINVAL, got %v", err)
	}
	if stack.InUse() != 0 {
		t.Error("Failed open leaked a socket")
	}
}

func TestOf(t *testing.T) {
	if _, err := Of(nil); !errors.Is(err, data.EBADF) {
		t.Errorf("Expected EBADF, got %v", err)
	}

	file := handle.New(handle.KindFile, &handle.UnimplementedFile{})
	file.SetDescriptor(3)
	if _, err := Of(file); !errors.Is(err, data.ENOTSOCK) {
		t.Errorf("Expected ENOTSOCK, got %v", err)
	}

	sock := handle.New(handle.KindSocket, &Unimplemented{})
	if _, err := Of(sock); !errors.Is(err, data.EBADF) {
		t.Errorf("Expected EBADF for unopened socket, got %v", err)
	}

	sock.SetDescriptor(4)
	impl, err := Of(sock)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if err := impl.Listen(1); !errors.Is(err, data.ENOSYS) {
		t.Errorf("Expected ENOSYS, got %v", err)
	}
	if _, _, err := impl.RecvFrom(make([]byte, 1), 0); !errors.Is(err, data.ENOSYS) {
		t.Errorf("Expected ENOSYS, got %v", err)
	}
}
