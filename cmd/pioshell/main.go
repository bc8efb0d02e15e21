// Command pioshell runs the shell on a simulated serial console wired to the
// host terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwantia/pio"
	"github.com/mwantia/pio/blockdev"
	"github.com/mwantia/pio/blockdev/local"
	"github.com/mwantia/pio/blockdev/sqlite"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/fs"
	"github.com/mwantia/pio/log"
	"github.com/mwantia/pio/memfs"
	"github.com/mwantia/pio/shell"
	"github.com/mwantia/pio/usart"
	"github.com/mwantia/pio/usart/sim"
	"golang.org/x/term"
)

const console = "ttyS0"

func flags() *shell.CommandFlagSet {
	return shell.NewFlagSet(
		&shell.CommandFlag{Name: "log-level", Short: "v", Type: "string", Default: "info", Description: "debug, info, warn, error or off"},
		&shell.CommandFlag{Name: "log-file", Short: "f", Type: "string", Default: "pioshell.log", Description: "Log file, rotated"},
		&shell.CommandFlag{Name: "db", Short: "d", Type: "string", Default: "", Description: "SQLite file mounted at /data/, empty to skip"},
		&shell.CommandFlag{Name: "image", Short: "i", Type: "string", Default: "", Description: "Host image file mounted at /disk/, empty to skip"},
		&shell.CommandFlag{Name: "blocks", Short: "b", Type: "int", Default: int64(1024), Description: "Block count of the /data/ and /disk/ devices"},
	)
}

// setupDemoRuntime mounts the filesystems, registers the devices and seeds
// the root filesystem.
func setupDemoRuntime(args *shell.CommandArgs, hw *sim.USART) (*pio.Runtime, func(), error) {
	level, err := log.Parse(args.String("log-level"))
	if err != nil {
		return nil, nil, err
	}

	rt, err := pio.New(
		pio.WithLogLevel(level),
		pio.WithLogFile(args.String("log-file")),
		pio.WithoutTerminalLog(),
	)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := rt.Teardown(); err != nil {
			rt.Logger().Error("Teardown: %v", err)
		}
	}

	root, err := fs.New("root", memfs.New(), fs.WithLogger(rt.Logger()))
	if err != nil {
		return nil, cleanup, err
	}
	if err := rt.SetRoot(root, blockdev.NewRAM("ram0", 512, 256), 0); err != nil {
		return nil, cleanup, fmt.Errorf("failed to mount root: %w", err)
	}

	if path := args.String("db"); path != "" {
		bdev, err := sqlite.New("sd0", path, 512, args.Int("blocks"))
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open %s: %w", path, err)
		}
		next := cleanup
		cleanup = func() {
			next()
			bdev.Release()
		}

		store, err := fs.New("data", memfs.New(), fs.WithLogger(rt.Logger()), fs.WithFiles(8))
		if err != nil {
			return nil, cleanup, err
		}
		if err := rt.Mount(store, "/data/", bdev, 0); err != nil {
			return nil, cleanup, fmt.Errorf("failed to mount /data/: %w", err)
		}
	}

	if path := args.String("image"); path != "" {
		disk, err := fs.New("disk", memfs.New(), fs.WithLogger(rt.Logger()))
		if err != nil {
			return nil, cleanup, err
		}
		if err := rt.Mount(disk, "/disk/", local.New("hd0", path, 512, args.Int("blocks")), 0); err != nil {
			return nil, cleanup, fmt.Errorf("failed to mount /disk/: %w", err)
		}
	}

	if err := rt.Register(blockdev.NewDevice("ram1", blockdev.NewRAM("ram1", 512, 64))); err != nil {
		return nil, cleanup, err
	}

	tty, err := usart.New(console, hw,
		usart.WithReadTimeout(100),
		usart.WithTxBuffer(256, 0, 64),
		usart.WithLogger(rt.Logger()),
	)
	if err != nil {
		return nil, cleanup, err
	}
	if err := rt.Register(tty); err != nil {
		return nil, cleanup, err
	}

	for _, dir := range []string{"/etc", "/tmp"} {
		if err := rt.Mkdir(dir, 0o755); err != nil && !errors.Is(err, data.EEXIST) {
			return nil, cleanup, err
		}
	}

	fd, err := rt.Open("/etc/motd", data.Create(0o644))
	if err != nil {
		return nil, cleanup, err
	}
	defer rt.Close(fd)

	if _, err := rt.Write(fd, []byte("Welcome to pio. Type 'help' for commands.\n")); err != nil {
		return nil, cleanup, err
	}
	return rt, cleanup, nil
}

// feed forwards host input to the simulated receiver. End of input is
// passed on as ^D.
func feed(r io.Reader, hw *sim.USART) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hw.Inject(buf[:n])
		}
		if err != nil {
			hw.Inject([]byte{0x04})
			return
		}
	}
}

func run(args *shell.CommandArgs) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hw := sim.New(sim.WithOutput(os.Stdout))
	rt, cleanup, err := setupDemoRuntime(args, hw)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return err
	}

	fd, err := rt.Open("/dev/"+console, data.ReadWrite())
	if err != nil {
		return err
	}
	defer rt.Close(fd)

	opts := []shell.Option{shell.WithLogger(rt.Logger())}
	if stdin := int(os.Stdin.Fd()); term.IsTerminal(stdin) {
		state, err := term.MakeRaw(stdin)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer term.Restore(stdin, state)

		opts = append(opts, shell.WithCRLF())
	} else {
		opts = append(opts, shell.WithoutEcho())
	}

	go feed(os.Stdin, hw)

	sh := shell.New(rt, opts...)
	if err := sh.Serve(ctx, fd); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	args, err := shell.NewParser(flags()).Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "pioshell: %v\n", err)
		os.Exit(2)
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "pioshell: %v\n", err)
		os.Exit(1)
	}
}
