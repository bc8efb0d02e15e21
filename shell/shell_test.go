package shell_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/pio"
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/memfs"
	"github.com/mwantia/pio/shell"
	"github.com/mwantia/pio/usart"
	"github.com/mwantia/pio/usart/sim"
)

var _ shell.API = (*pio.Runtime)(nil)

func setupShell(t *testing.T) (*pio.Runtime, *shell.Shell) {
	t.Helper()

	rt, err := pio.New(pio.WithoutTerminalLog())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { rt.Teardown() })

	root, err := fs.New("root", memfs.New())
	if err != nil {
		t.Fatalf("fs.New failed: %v", err)
	}
	if err := rt.SetRoot(root, blockdev.NewRAM("ram0", 512, 64), 0); err != nil {
		t.Fatalf("SetRoot failed: %v", err)
	}

	return rt, shell.New(rt)
}

func run(t *testing.T, sh *shell.Shell, line string) string {
	t.Helper()

	var out bytes.Buffer
	if code, err := sh.Execute(context.Background(), &out, line); err != nil || code != 0 {
		t.Fatalf("%q failed with %d: %v", line, code, err)
	}
	return out.String()
}

func TestShell_FileCommands(t *testing.T) {
	_, sh := setupShell(t)

	run(t, sh, "mkdir /etc")
	run(t, sh, `echo -o /etc/motd "hello there"`)
	run(t, sh, "echo -a -o /etc/motd again")

	if got := run(t, sh, "cat /etc/motd"); got != "hello there\nagain\n" {
		t.Errorf("cat = %q", got)
	}

	run(t, sh, "mv /etc/motd /etc/issue")
	if got := run(t, sh, "ls /etc"); got != "issue\n" {
		t.Errorf("ls = %q", got)
	}

	long := run(t, sh, "ls -l /etc")
	if !strings.HasPrefix(long, "-rw-r--r--") || !strings.Contains(long, " 18 issue") {
		t.Errorf("ls -l = %q", long)
	}

	if got := run(t, sh, "stat /etc/issue"); !strings.Contains(got, "Size: 18") {
		t.Errorf("stat = %q", got)
	}

	run(t, sh, "chmod 600 /etc/issue")
	if got := run(t, sh, "ls -l /etc"); !strings.HasPrefix(got, "-rw-------") {
		t.Errorf("ls -l after chmod = %q", got)
	}

	run(t, sh, "rm /etc/issue")
	run(t, sh, "rmdir /etc")
	if got := run(t, sh, "ls"); got != "" {
		t.Errorf("ls / = %q, want empty", got)
	}
}

func TestShell_Errors(t *testing.T) {
	_, sh := setupShell(t)

	var out bytes.Buffer
	code, err := sh.Execute(context.Background(), &out, "frobnicate")
	if code != shell.ExitNotFound || err == nil {
		t.Errorf("Unknown command = %d, %v", code, err)
	}

	code, err = sh.Execute(context.Background(), &out, "ls --bogus")
	if code != shell.ExitUsage || err == nil {
		t.Errorf("Unknown flag = %d, %v", code, err)
	}

	code, err = sh.Execute(context.Background(), &out, "cat /missing")
	if code != 1 || !errors.Is(err, data.ENOENT) {
		t.Errorf("cat missing = %d, %v", code, err)
	}

	code, err = sh.Execute(context.Background(), &out, "mv /a")
	if code != shell.ExitUsage || err == nil {
		t.Errorf("mv usage = %d, %v", code, err)
	}

	if _, err := sh.Execute(context.Background(), &out, "exit"); !errors.Is(err, shell.ErrExit) {
		t.Errorf("exit = %v", err)
	}
}

func TestShell_SystemCommands(t *testing.T) {
	rt, sh := setupShell(t)

	dev, err := usart.New("usart1", sim.New())
	if err != nil {
		t.Fatalf("usart.New failed: %v", err)
	}
	if err := rt.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := run(t, sh, "devs"); got != "/dev/usart1 tty (closed)\n" {
		t.Errorf("devs = %q", got)
	}
	if got := run(t, sh, "ls /dev"); got != "usart1\n" {
		t.Errorf("ls /dev = %q", got)
	}
	if got := run(t, sh, "mounts"); !strings.HasPrefix(got, "root       ram0     on /") {
		t.Errorf("mounts = %q", got)
	}
	if got := run(t, sh, "df -H"); !strings.Contains(got, "32 KiB") {
		t.Errorf("df = %q", got)
	}
	if got := run(t, sh, "help"); !strings.Contains(got, "ls       List directory contents") {
		t.Errorf("help = %q", got)
	}
	run(t, sh, "sync")

	run(t, sh, "log debug")
	if got := run(t, sh, "log"); got != "DEBUG\n" {
		t.Errorf("log = %q", got)
	}
	if !rt.Logger().Enabled(log.Debug) {
		t.Error("log debug did not reach the runtime logger")
	}
}

func TestShell_Register(t *testing.T) {
	_, sh := setupShell(t)

	if err := sh.Register(nil); !errors.Is(err, data.EINVAL) {
		t.Errorf("Register(nil): expected EINVAL, got %v", err)
	}
	if err := sh.Register(sh.Commands()[0]); !errors.Is(err, data.EEXIST) {
		t.Errorf("Register duplicate: expected EEXIST, got %v", err)
	}
}

func TestShell_ServeSerialConsole(t *testing.T) {
	rt, _ := setupShell(t)

	hw := sim.New()
	dev, err := usart.New("usart1", hw, usart.WithReadTimeout(10))
	if err != nil {
		t.Fatalf("usart.New failed: %v", err)
	}
	if err := rt.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	fd, err := rt.Open("/dev/usart1", data.ReadWrite())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rt.Close(fd)

	sh := shell.New(rt, shell.WithPrompt("$ "), shell.WithCRLF())
	done := make(chan error, 1)
	go func() {
		done <- sh.Serve(context.Background(), fd)
	}()

	hw.Inject([]byte("echo hx\x7fi\r\n"))
	time.Sleep(20 * time.Millisecond)
	hw.Inject([]byte("exit\r"))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after exit")
	}

	if dev.Drain(100) != nil {
		t.Fatal("Drain failed")
	}
	out := string(hw.Sent())
	if !strings.Contains(out, "echo hx\b \bi\r\nhi\r\n$ ") {
		t.Errorf("Console output = %q", out)
	}
	if strings.Count(out, "$ ") != 2 {
		t.Errorf("Expected two prompts, got %q", out)
	}
}

func TestShell_ServeStopsOnCancel(t *testing.T) {
	rt, _ := setupShell(t)

	dev, _ := usart.New("usart1", sim.New(), usart.WithReadTimeout(5))
	if err := rt.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	fd, err := rt.Open("/dev/usart1", data.ReadWrite())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rt.Close(fd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- shell.New(rt).Serve(ctx, fd)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve ignored the cancellation")
	}
}

func TestShell_Quoting(t *testing.T) {
	_, sh := setupShell(t)

	tests := []struct {
		line string
		want string
	}{
		{`echo   a   b`, "a b\n"},
		{`echo "hello   world"`, "hello   world\n"},
		{`echo 'a "b"' c\ d`, "a \"b\" c d\n"},
		{`echo -n x`, "x"},
	}

	for _, tt := range tests {
		if got := run(t, sh, tt.line); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.line, got, tt.want)
		}
	}

	var out bytes.Buffer
	if code, err := sh.Execute(context.Background(), &out, `echo "open`); code != shell.ExitUsage || err == nil {
		t.Errorf("Unterminated quote = %d, %v", code, err)
	}
	if code, err := sh.Execute(context.Background(), &out, "   "); code != 0 || err != nil {
		t.Errorf("Blank line = %d, %v", code, err)
	}
}
