package pio

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/device"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/memfs"
	"github.com/mwantia/pio/socket"
	"github.com/mwantia/pio/usart"
	"github.com/mwantia/pio/usart/sim"
)

type recordingDevice struct {
	device.Base
	opened []string
	closed int
}

func newRecordingDevice(name string) *recordingDevice {
	return &recordingDevice{Base: device.NewBase(name)}
}

func (d *recordingDevice) Open(name string, opts data.OpenOptions) error {
	d.opened = append(d.opened, name)
	return nil
}

func (d *recordingDevice) Close() error {
	d.closed++
	return nil
}

type statDriver struct {
	fs.UnimplementedDriver
	paths []string
}

func (d *statDriver) Stat(path string, st *data.Stat) error {
	d.paths = append(d.paths, path)
	return nil
}

func setupRuntime(t *testing.T, opts ...RuntimeOption) *Runtime {
	t.Helper()

	r, err := New(append([]RuntimeOption{WithLogger(log.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func setupRoot(t *testing.T, r *Runtime) {
	t.Helper()

	root, err := fs.New("root", memfs.New())
	if err != nil {
		t.Fatalf("fs.New failed: %v", err)
	}
	if err := r.SetRoot(root, blockdev.NewRAM("ram0", 512, 64), 0); err != nil {
		t.Fatalf("SetRoot failed: %v", err)
	}
}

func TestRuntime_DeviceOpenClose(t *testing.T) {
	r := setupRuntime(t)
	dev := newRecordingDevice("usart1")
	if err := r.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	fd, err := r.Open("/dev/usart1", data.OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if fd < 3 {
		t.Errorf("Descriptor %d collides with the standard streams", fd)
	}
	if len(dev.opened) != 1 || dev.opened[0] != "usart1" {
		t.Errorf("Open hook saw %v", dev.opened)
	}

	if _, err := r.Open("/dev/usart1", data.OpenOptions{}); !errors.Is(err, data.EBADF) {
		t.Errorf("Expected EBADF reopening an open device, got %v", err)
	}

	if err := r.Close(fd); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if dev.closed != 1 {
		t.Errorf("Close hook called %d times", dev.closed)
	}
	if err := r.Close(fd); !errors.Is(err, data.EBADF) || r.Errno() != data.EBADF {
		t.Errorf("Expected EBADF closing twice, got %v / %v", err, r.Errno())
	}

	again, err := r.Open("/dev/usart1", data.OpenOptions{})
	if err != nil || again != fd {
		t.Errorf("Reopen = %d, %v; want %d", again, err, fd)
	}
	if r.Errno() != 0 {
		t.Errorf("Errno not cleared by a successful call: %v", r.Errno())
	}
}

func TestRuntime_OpenErrors(t *testing.T) {
	r := setupRuntime(t, WithMaxOpenFiles(4))
	dev := newRecordingDevice("tty")
	r.Register(dev)

	if _, err := r.Open("/dev/missing", data.ReadOnly()); !errors.Is(err, data.ENOENT) {
		t.Errorf("Expected ENOENT without any mount, got %v", err)
	}
	if r.Errno() != data.ENOENT {
		t.Errorf("Errno = %v", r.Errno())
	}

	setupRoot(t, r)
	if _, err := r.Open("/a", data.Create(0644)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := r.Open("/dev/tty", data.ReadWrite()); !errors.Is(err, data.ENFILE) {
		t.Fatalf("Expected ENFILE, got %v", err)
	}
	if dev.closed != 1 {
		t.Error("Failed allocation must undo the open hook")
	}

	var pathErr *data.PathError
	_, err := r.Open("/dev/tty", data.ReadWrite())
	if !errors.As(err, &pathErr) || pathErr.Path != "/dev/tty" {
		t.Errorf("Expected PathError, got %v", err)
	}
}

func TestRuntime_FileRoundTrip(t *testing.T) {
	r := setupRuntime(t)
	setupRoot(t, r)

	if err := r.Mkdir("/etc", 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	fd, err := r.Open("/etc/hosts", data.Create(0644))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	n, err := r.Writev(fd, [][]byte{[]byte("127.0.0.1 "), []byte("localhost")})
	if err != nil || n != 19 {
		t.Fatalf("Writev = %d, %v", n, err)
	}
	if _, err := r.Lseek(fd, 0, io.SeekStart); err != nil {
		t.Fatalf("Lseek failed: %v", err)
	}
	buf := make([]byte, 64)
	n, err = r.Read(fd, buf)
	if err != nil || string(buf[:n]) != "127.0.0.1 localhost" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}
	if n, err := r.Read(fd, buf); n != 0 || err != nil {
		t.Errorf("Read at end = %d, %v", n, err)
	}

	if _, err := r.Isatty(fd); !errors.Is(err, data.ENOTTY) {
		t.Errorf("Expected ENOTTY, got %v", err)
	}
	if err := r.Fsync(fd); err != nil {
		t.Errorf("Fsync failed: %v", err)
	}
	if err := r.Close(fd); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var st data.Stat
	if err := r.Stat("/etc/hosts", &st); err != nil || st.Size != 19 {
		t.Errorf("Stat = %d, %v", st.Size, err)
	}
	if err := r.Rename("/etc/hosts", "/etc/hosts.bak"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	dir, err := r.Opendir("/etc")
	if err != nil {
		t.Fatalf("Opendir failed: %v", err)
	}
	entry, err := r.Readdir(dir)
	if err != nil || entry == nil || entry.Name != "hosts.bak" {
		t.Errorf("Readdir = %+v, %v", entry, err)
	}
	if entry, _ := r.Readdir(dir); entry != nil {
		t.Errorf("Expected end of directory, got %+v", entry)
	}
	if err := r.Closedir(dir); err != nil {
		t.Fatalf("Closedir failed: %v", err)
	}

	if err := r.Unlink("/etc/hosts.bak"); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if err := r.Rmdir("/etc"); err != nil {
		t.Fatalf("Rmdir failed: %v", err)
	}
}

func TestRuntime_MountedStat(t *testing.T) {
	r := setupRuntime(t)
	driver := &statDriver{}
	fsB, err := fs.New("b", driver)
	if err != nil {
		t.Fatalf("fs.New failed: %v", err)
	}
	if err := r.Mount(fsB, "/data/", blockdev.NewRAM("ram1", 512, 4), 0); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	if err := r.Stat("/data/file.txt", &data.Stat{}); err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if len(driver.paths) != 1 || driver.paths[0] != "/file.txt" {
		t.Errorf("Stat hook saw %v", driver.paths)
	}

	if err := r.Mkdir("/data/x", 0755); !errors.Is(err, data.ENOSYS) || r.Errno() != data.ENOSYS {
		t.Errorf("Expected ENOSYS, got %v", err)
	}
}

func TestRuntime_CrossFilesystemRename(t *testing.T) {
	r := setupRuntime(t)
	setupRoot(t, r)

	other, _ := fs.New("other", memfs.New())
	if err := r.Mount(other, "/mnt/", blockdev.NewRAM("ram1", 512, 16), 0); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	fd, _ := r.Open("/file", data.Create(0644))
	r.Close(fd)

	if err := r.Rename("/file", "/mnt/file"); !errors.Is(err, data.EINVAL) {
		t.Errorf("Expected EINVAL, got %v", err)
	}
}

func TestRuntime_DescriptorChecks(t *testing.T) {
	r := setupRuntime(t)
	dev := newRecordingDevice("null")
	r.Register(dev)

	if _, err := r.Read(42, make([]byte, 1)); !errors.Is(err, data.EBADF) {
		t.Errorf("Expected EBADF, got %v", err)
	}
	if _, err := r.Write(-1, []byte("x")); !errors.Is(err, data.EBADF) {
		t.Errorf("Expected EBADF, got %v", err)
	}

	fd, err := r.Open("/dev/null", data.ReadWrite())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := r.Read(fd, nil); !errors.Is(err, data.EFAULT) {
		t.Errorf("Expected EFAULT, got %v", err)
	}
	if _, err := r.Read(fd, make([]byte, 1)); !errors.Is(err, data.ENOSYS) {
		t.Errorf("Expected ENOSYS from default hook, got %v", err)
	}
	if _, err := r.Lseek(fd, 0, io.SeekStart); !errors.Is(err, data.ESPIPE) {
		t.Errorf("Expected ESPIPE, got %v", err)
	}
	if err := r.Ftruncate(fd, 0); !errors.Is(err, data.EINVAL) {
		t.Errorf("Expected EINVAL, got %v", err)
	}
	if flags, err := r.Fcntl(fd, data.FcntlGetFlags, 0); err != nil || data.AccessMode(flags) != data.AccessModeReadWrite {
		t.Errorf("Fcntl = %d, %v", flags, err)
	}

	var st data.Stat
	if err := r.Stat("/dev/null", &st); err != nil || !st.Mode.IsCharDevice() {
		t.Errorf("Stat of device = %v, %v", st.Mode, err)
	}

	if _, err := r.Socket(2, 1, 0); !errors.Is(err, data.ENOSYS) {
		t.Errorf("Expected ENOSYS without socket stack, got %v", err)
	}
	if err := r.Listen(fd, 1); !errors.Is(err, data.ENOTSOCK) {
		t.Errorf("Expected ENOTSOCK, got %v", err)
	}
}

type echoSocket struct {
	socket.Unimplemented
	last []byte
}

func (s *echoSocket) Open(int, int, int) error {
	s.last = nil
	return nil
}

func (s *echoSocket) Connect(net.Addr) error {
	return nil
}

func (s *echoSocket) Send(p []byte, flags int) (int, error) {
	s.last = append(s.last[:0], p...)
	return len(p), nil
}

func (s *echoSocket) Recv(p []byte, flags int) (int, error) {
	return copy(p, s.last), nil
}

func TestRuntime_Sockets(t *testing.T) {
	stack := socket.NewStack(1, func() socket.Socket { return &echoSocket{} }, nil)
	r := setupRuntime(t, WithSocketStack(stack))

	fd, err := r.Socket(2, 1, 0)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	if err := r.Connect(fd, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := r.Send(fd, []byte("ping"), 0); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	buf := make([]byte, 8)
	if n, err := r.Recv(fd, buf, 0); err != nil || string(buf[:n]) != "ping" {
		t.Errorf("Recv = %q, %v", buf[:n], err)
	}
	if _, err := r.Send(fd, nil, 0); !errors.Is(err, data.EFAULT) {
		t.Errorf("Expected EFAULT, got %v", err)
	}
	if err := r.Bind(fd, nil); !errors.Is(err, data.EINVAL) {
		t.Errorf("Expected EINVAL, got %v", err)
	}
	if _, err := r.SockAtMark(fd); !errors.Is(err, data.ENOSYS) {
		t.Errorf("Expected ENOSYS, got %v", err)
	}

	if _, err := r.Socket(2, 1, 0); !errors.Is(err, data.ENOSR) {
		t.Errorf("Expected ENOSR, got %v", err)
	}
	if err := r.Close(fd); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := r.Socket(2, 1, 0); err != nil {
		t.Errorf("Socket after close failed: %v", err)
	}
}

func TestRuntime_SerialDevice(t *testing.T) {
	r := setupRuntime(t)
	hw := sim.New()
	dev, err := usart.New("ttyS0", hw, usart.WithReadTimeout(1000), usart.WithWriteTimeout(1000))
	if err != nil {
		t.Fatalf("usart.New failed: %v", err)
	}
	if err := r.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	fd, err := r.Open("/dev/ttyS0", data.ReadWrite())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ok, err := r.Isatty(fd); !ok || err != nil {
		t.Errorf("Isatty = %v, %v", ok, err)
	}

	if _, err := r.Write(fd, []byte("login: ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(hw.Sent()) != "login: " {
		t.Errorf("Sent %q", hw.Sent())
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		hw.Inject([]byte("root\n"))
	}()
	buf := make([]byte, 16)
	n, err := r.Read(fd, buf)
	if err != nil || string(buf[:n]) != "root\n" {
		t.Errorf("Read = %q, %v", buf[:n], err)
	}

	if err := r.Ioctl(fd, &usart.SetBaudRate{Baud: 9600}); err != nil {
		t.Errorf("Ioctl failed: %v", err)
	}
	if err := r.Close(fd); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Unregister(dev); err != nil {
		t.Errorf("Unregister failed: %v", err)
	}
}

func TestRuntime_Teardown(t *testing.T) {
	r := setupRuntime(t)
	setupRoot(t, r)
	dev := newRecordingDevice("tty")
	r.Register(dev)

	r.Open("/dev/tty", data.ReadWrite())
	r.Open("/f", data.Create(0644))
	if r.OpenDescriptors() != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", r.OpenDescriptors())
	}

	r.Sync()
	if err := r.Teardown(); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}
	if r.OpenDescriptors() != 0 || len(r.Mounts()) != 0 {
		t.Error("Teardown left descriptors or mounts behind")
	}
	if dev.closed != 1 {
		t.Error("Device not closed on teardown")
	}
}
