package pio

import (
	"net"

	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/handle"
	"github.com/mwantia/pio/socket"
)

// Socket opens a socket on the configured stack. Without a stack every
// socket call fails with ENOSYS.
func (r *Runtime) Socket(domain, typ, protocol int) (int, error) {
	r.begin()
	if r.sockets == nil {
		return handle.NoDescriptor, r.fail(data.ENOSYS)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.sockets.Socket(domain, typ, protocol)
	if err != nil {
		return handle.NoDescriptor, r.fail(err)
	}

	fd, err := r.fds.Alloc(h)
	if err != nil {
		h.Abort()
		return handle.NoDescriptor, r.fail(err)
	}
	return fd, nil
}

func (r *Runtime) socketOf(fd int) (*handle.Handle, socket.Socket, error) {
	h, err := r.lookup(fd)
	if err != nil {
		return nil, nil, err
	}
	sock, err := socket.Of(h)
	if err != nil {
		return nil, nil, err
	}
	return h, sock, nil
}

// stream checks the preconditions shared by the data transfer calls.
func (r *Runtime) stream(fd int, p []byte) (socket.Socket, error) {
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, data.EFAULT
	}
	if !sock.Connected() {
		return nil, data.EIO
	}
	return sock, nil
}

func (r *Runtime) Bind(fd int, addr net.Addr) error {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return r.fail(err)
	}
	if addr == nil {
		return r.fail(data.EINVAL)
	}
	return r.fail(sock.Bind(addr))
}

func (r *Runtime) Connect(fd int, addr net.Addr) error {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return r.fail(err)
	}
	if addr == nil {
		return r.fail(data.EINVAL)
	}
	return r.fail(sock.Connect(addr))
}

func (r *Runtime) Listen(fd, backlog int) error {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return r.fail(err)
	}
	if backlog < 0 {
		return r.fail(data.EINVAL)
	}
	return r.fail(sock.Listen(backlog))
}

// Accept returns a new descriptor for the next pending connection on fd.
func (r *Runtime) Accept(fd int) (int, net.Addr, error) {
	r.begin()
	_, listener, err := r.socketOf(fd)
	if err != nil {
		return handle.NoDescriptor, nil, r.fail(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, addr, err := r.sockets.Accept(listener)
	if err != nil {
		return handle.NoDescriptor, nil, r.fail(err)
	}

	conn, err := r.fds.Alloc(h)
	if err != nil {
		h.Abort()
		return handle.NoDescriptor, nil, r.fail(err)
	}
	return conn, addr, nil
}

func (r *Runtime) Send(fd int, p []byte, flags int) (int, error) {
	r.begin()
	sock, err := r.stream(fd, p)
	if err != nil {
		return 0, r.fail(err)
	}

	n, err := sock.Send(p, flags)
	return n, r.fail(err)
}

func (r *Runtime) Recv(fd int, p []byte, flags int) (int, error) {
	r.begin()
	sock, err := r.stream(fd, p)
	if err != nil {
		return 0, r.fail(err)
	}

	n, err := sock.Recv(p, flags)
	return n, r.fail(err)
}

func (r *Runtime) SendTo(fd int, p []byte, flags int, addr net.Addr) (int, error) {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return 0, r.fail(err)
	}
	if p == nil {
		return 0, r.fail(data.EFAULT)
	}

	n, err := sock.SendTo(p, flags, addr)
	return n, r.fail(err)
}

func (r *Runtime) RecvFrom(fd int, p []byte, flags int) (int, net.Addr, error) {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return 0, nil, r.fail(err)
	}
	if p == nil {
		return 0, nil, r.fail(data.EFAULT)
	}

	n, addr, err := sock.RecvFrom(p, flags)
	return n, addr, r.fail(err)
}

func (r *Runtime) GetSockOpt(fd, level, name int) (int, error) {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return 0, r.fail(err)
	}

	v, err := sock.GetSockOpt(level, name)
	return v, r.fail(err)
}

func (r *Runtime) SetSockOpt(fd, level, name, value int) error {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return r.fail(err)
	}
	return r.fail(sock.SetSockOpt(level, name, value))
}

func (r *Runtime) Shutdown(fd, how int) error {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return r.fail(err)
	}
	return r.fail(sock.Shutdown(how))
}

func (r *Runtime) SockAtMark(fd int) (bool, error) {
	r.begin()
	_, sock, err := r.socketOf(fd)
	if err != nil {
		return false, r.fail(err)
	}

	mark, err := sock.SockAtMark()
	return mark, r.fail(err)
}
