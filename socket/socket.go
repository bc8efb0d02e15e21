// Package socket is the dispatch point for network sockets. It defines the
// hook set a socket implementation provides and a Stack that owns a fixed
// pool of them; no protocol is implemented here.
package socket

import (
	"net"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
)

// Socket is the implementation object behind a socket handle.
type Socket interface {
	handle.Ops

	Open(domain, typ, protocol int) error
	// Accept takes the next pending connection and sets it up on conn,
	// a freshly acquired socket of the same stack.
	Accept(conn Socket) (net.Addr, error)
	Bind(addr net.Addr) error
	Connect(addr net.Addr) error
	Listen(backlog int) error
	Send(p []byte, flags int) (int, error)
	Recv(p []byte, flags int) (int, error)
	SendTo(p []byte, flags int, addr net.Addr) (int, error)
	RecvFrom(p []byte, flags int) (int, net.Addr, error)
	GetSockOpt(level, name int) (int, error)
	SetSockOpt(level, name, value int) error
	Shutdown(how int) error
	SockAtMark() (bool, error)
}

// Unimplemented fails every socket hook with ENOSYS. Embed it and override
// what the protocol supports.
type Unimplemented struct {
	handle.Unimplemented
}

func (Unimplemented) Open(int, int, int) error {
	return data.ENOSYS
}

func (Unimplemented) Accept(Socket) (net.Addr, error) {
	return nil, data.ENOSYS
}

func (Unimplemented) Bind(net.Addr) error {
	return data.ENOSYS
}

func (Unimplemented) Connect(net.Addr) error {
	return data.ENOSYS
}

func (Unimplemented) Listen(int) error {
	return data.ENOSYS
}

func (Unimplemented) Send([]byte, int) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) Recv([]byte, int) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) SendTo([]byte, int, net.Addr) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) RecvFrom([]byte, int) (int, net.Addr, error) {
	return 0, nil, data.ENOSYS
}

func (Unimplemented) GetSockOpt(int, int) (int, error) {
	return 0, data.ENOSYS
}

func (Unimplemented) SetSockOpt(int, int, int) error {
	return data.ENOSYS
}

func (Unimplemented) Shutdown(int) error {
	return data.ENOSYS
}

func (Unimplemented) SockAtMark() (bool, error) {
	return false, data.ENOSYS
}

// Of returns the socket behind an open handle. Handles of any other kind
// fail with ENOTSOCK.
func Of(h *handle.Handle) (Socket, error) {
	if h == nil || !h.IsOpen() {
		return nil, data.EBADF
	}
	sock, ok := h.Impl().(Socket)
	if !ok || !h.Kind().Is(handle.KindSocket) {
		return nil, data.ENOTSOCK
	}
	return sock, nil
}
