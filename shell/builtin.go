package shell

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/log"
)

func builtins(s *Shell) []Command {
	return []Command{
		&helpCommand{shell: s},
		&exitCommand{},
		&lsCommand{},
		&catCommand{},
		&echoCommand{},
		&statCommand{},
		&mkdirCommand{},
		&rmdirCommand{},
		&rmCommand{},
		&mvCommand{},
		&chmodCommand{},
		&mountsCommand{},
		&dfCommand{},
		&devsCommand{},
		&syncCommand{},
		&logCommand{},
	}
}

func requireArgs(args *CommandArgs, n int, usage string) error {
	if len(args.Args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

type helpCommand struct {
	shell *Shell
}

func (c *helpCommand) Name() string              { return "help" }
func (c *helpCommand) Description() string       { return "List commands" }
func (c *helpCommand) Usage() string             { return "help [command]" }
func (c *helpCommand) GetFlags() *CommandFlagSet { return nil }

func (c *helpCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if len(args.Args) > 0 {
		cmd, ok := c.shell.commands[args.Args[0]]
		if !ok {
			return 1, fmt.Errorf("%s: no such command", args.Args[0])
		}

		fmt.Fprintf(w, "%s\n  usage: %s\n", cmd.Description(), cmd.Usage())
		if set := cmd.GetFlags(); set != nil {
			for _, name := range sortedFlags(set) {
				flag := set.Flags[name]
				fmt.Fprintf(w, "  -%s, --%-10s %s\n", flag.Short, flag.Name, flag.Description)
			}
		}
		return 0, nil
	}

	for _, cmd := range c.shell.Commands() {
		fmt.Fprintf(w, "%-8s %s\n", cmd.Name(), cmd.Description())
	}
	return 0, nil
}

type exitCommand struct{}

func (c *exitCommand) Name() string              { return "exit" }
func (c *exitCommand) Description() string       { return "End the session" }
func (c *exitCommand) Usage() string             { return "exit" }
func (c *exitCommand) GetFlags() *CommandFlagSet { return nil }

func (c *exitCommand) Execute(context.Context, API, *CommandArgs, io.Writer) (int, error) {
	return 0, ErrExit
}

type lsCommand struct{}

func (c *lsCommand) Name() string        { return "ls" }
func (c *lsCommand) Description() string { return "List directory contents" }
func (c *lsCommand) Usage() string       { return "ls [-l] [-H] [path...]" }

func (c *lsCommand) GetFlags() *CommandFlagSet {
	return NewFlagSet(
		&CommandFlag{Name: "long", Short: "l", Type: "bool", Description: "Show mode and size"},
		&CommandFlag{Name: "human", Short: "H", Type: "bool", Description: "Human readable sizes"},
	)
}

func (c *lsCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	paths := args.Args
	if len(paths) == 0 {
		paths = []string{"/"}
	}

	code := 0
	errs := &data.Errors{}
	for _, p := range paths {
		if len(paths) > 1 {
			fmt.Fprintf(w, "%s:\n", p)
		}
		if err := c.list(api, p, args, w); err != nil {
			errs.Add(err)
			code = 1
		}
	}
	return code, errs.Errors()
}

func (c *lsCommand) list(api API, dir string, args *CommandArgs, w io.Writer) error {
	prefix := api.DevicePrefix()
	if dir+"/" == prefix || dir == prefix {
		for _, e := range api.Devices() {
			c.print(api, w, prefix+e.Device.Name(), e.Device.Name(), args)
		}
		return nil
	}

	d, err := api.Opendir(dir)
	if err != nil {
		return err
	}
	defer api.Closedir(d)

	for {
		entry, err := api.Readdir(d)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		c.print(api, w, path.Join(dir, entry.Name), entry.Name, args)
	}
}

func (c *lsCommand) print(api API, w io.Writer, full, name string, args *CommandArgs) {
	if !args.Bool("long") {
		fmt.Fprintln(w, name)
		return
	}

	var st data.Stat
	if err := api.Stat(full, &st); err != nil {
		fmt.Fprintf(w, "?????????? %8s %s\n", "?", name)
		return
	}
	fmt.Fprintf(w, "%-10s %8s %s\n", st.Mode, formatSize(st.Size, args.Bool("human")), name)
}

func formatSize(size int64, human bool) string {
	if human {
		return humanize.IBytes(uint64(max(size, 0)))
	}
	return fmt.Sprintf("%d", size)
}

type catCommand struct{}

func (c *catCommand) Name() string              { return "cat" }
func (c *catCommand) Description() string       { return "Print file contents" }
func (c *catCommand) Usage() string             { return "cat path..." }
func (c *catCommand) GetFlags() *CommandFlagSet { return nil }

func (c *catCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if err := requireArgs(args, 1, c.Usage()); err != nil {
		return ExitUsage, err
	}

	buf := make([]byte, 128)
	for _, p := range args.Args {
		if err := c.copy(ctx, api, p, buf, w); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func (c *catCommand) copy(ctx context.Context, api API, p string, buf []byte, w io.Writer) error {
	fd, err := api.Open(p, data.ReadOnly())
	if err != nil {
		return err
	}
	defer api.Close(fd)

	for ctx.Err() == nil {
		n, err := api.Read(fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
	return ctx.Err()
}

type echoCommand struct{}

func (c *echoCommand) Name() string        { return "echo" }
func (c *echoCommand) Description() string { return "Print text or write it to a file" }
func (c *echoCommand) Usage() string       { return "echo [-n] [-o path [-a]] text..." }

func (c *echoCommand) GetFlags() *CommandFlagSet {
	return NewFlagSet(
		&CommandFlag{Name: "output", Short: "o", Type: "string", Description: "Write to path instead"},
		&CommandFlag{Name: "append", Short: "a", Type: "bool", Description: "Append to the output file"},
		&CommandFlag{Name: "no-newline", Short: "n", Type: "bool", Description: "Omit the trailing newline"},
	)
}

func (c *echoCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	text := strings.Join(args.Args, " ")
	if !args.Bool("no-newline") {
		text += "\n"
	}

	target := args.String("output")
	if target == "" {
		io.WriteString(w, text)
		return 0, nil
	}

	opts := data.Create(0o644)
	if args.Bool("append") {
		opts.Flags = data.AccessModeWrite | data.AccessModeCreate | data.AccessModeAppend
	}

	fd, err := api.Open(target, opts)
	if err != nil {
		return 1, err
	}

	_, werr := (&descriptorWriter{api: api, fd: fd}).Write([]byte(text))
	if err := api.Close(fd); werr == nil {
		werr = err
	}
	if werr != nil {
		return 1, werr
	}
	return 0, nil
}

type statCommand struct{}

func (c *statCommand) Name() string              { return "stat" }
func (c *statCommand) Description() string       { return "Show file status" }
func (c *statCommand) Usage() string             { return "stat path..." }
func (c *statCommand) GetFlags() *CommandFlagSet { return nil }

func (c *statCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if err := requireArgs(args, 1, c.Usage()); err != nil {
		return ExitUsage, err
	}

	var st data.Stat
	for _, p := range args.Args {
		if err := api.Stat(p, &st); err != nil {
			return 1, err
		}

		fmt.Fprintf(w, "  File: %s\n", p)
		fmt.Fprintf(w, "  Size: %-10d Blocks: %-6d IO Block: %d\n", st.Size, st.Blocks, st.BlockSize)
		fmt.Fprintf(w, " Inode: %-10d Links: %d\n", st.Ino, st.Nlink)
		fmt.Fprintf(w, "  Mode: %s (%04o)\n", st.Mode, uint32(st.Mode.Perm()))
		if !st.ModifyTime.IsZero() {
			fmt.Fprintf(w, "Access: %s\n", st.AccessTime.Format(timeFormat))
			fmt.Fprintf(w, "Modify: %s\n", st.ModifyTime.Format(timeFormat))
			fmt.Fprintf(w, "Change: %s\n", st.ChangeTime.Format(timeFormat))
		}
	}
	return 0, nil
}

const timeFormat = "2006-01-02 15:04:05"

type mkdirCommand struct{}

func (c *mkdirCommand) Name() string        { return "mkdir" }
func (c *mkdirCommand) Description() string { return "Create directories" }
func (c *mkdirCommand) Usage() string       { return "mkdir [-m mode] path..." }

func (c *mkdirCommand) GetFlags() *CommandFlagSet {
	return NewFlagSet(
		&CommandFlag{Name: "mode", Short: "m", Type: "int", Default: int64(0o755), Description: "Permission bits, octal with a leading 0"},
	)
}

func (c *mkdirCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if err := requireArgs(args, 1, c.Usage()); err != nil {
		return ExitUsage, err
	}

	mode := data.FileMode(args.Int("mode")) & data.ModePerm
	for _, p := range args.Args {
		if err := api.Mkdir(p, mode); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

type rmdirCommand struct{}

func (c *rmdirCommand) Name() string              { return "rmdir" }
func (c *rmdirCommand) Description() string       { return "Remove empty directories" }
func (c *rmdirCommand) Usage() string             { return "rmdir path..." }
func (c *rmdirCommand) GetFlags() *CommandFlagSet { return nil }

func (c *rmdirCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if err := requireArgs(args, 1, c.Usage()); err != nil {
		return ExitUsage, err
	}

	for _, p := range args.Args {
		if err := api.Rmdir(p); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

type rmCommand struct{}

func (c *rmCommand) Name() string              { return "rm" }
func (c *rmCommand) Description() string       { return "Remove files" }
func (c *rmCommand) Usage() string             { return "rm path..." }
func (c *rmCommand) GetFlags() *CommandFlagSet { return nil }

func (c *rmCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if err := requireArgs(args, 1, c.Usage()); err != nil {
		return ExitUsage, err
	}

	for _, p := range args.Args {
		if err := api.Unlink(p); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

type mvCommand struct{}

func (c *mvCommand) Name() string              { return "mv" }
func (c *mvCommand) Description() string       { return "Rename a file or directory" }
func (c *mvCommand) Usage() string             { return "mv from to" }
func (c *mvCommand) GetFlags() *CommandFlagSet { return nil }

func (c *mvCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if len(args.Args) != 2 {
		return ExitUsage, fmt.Errorf("usage: %s", c.Usage())
	}
	if err := api.Rename(args.Args[0], args.Args[1]); err != nil {
		return 1, err
	}
	return 0, nil
}

type chmodCommand struct{}

func (c *chmodCommand) Name() string              { return "chmod" }
func (c *chmodCommand) Description() string       { return "Change permission bits" }
func (c *chmodCommand) Usage() string             { return "chmod mode path..." }
func (c *chmodCommand) GetFlags() *CommandFlagSet { return nil }

func (c *chmodCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	if err := requireArgs(args, 2, c.Usage()); err != nil {
		return ExitUsage, err
	}

	v, err := coerce("0"+strings.TrimPrefix(args.Args[0], "0"), "int")
	if err != nil {
		return ExitUsage, fmt.Errorf("invalid mode %q", args.Args[0])
	}

	mode := data.FileMode(v.(int64)) & data.ModePerm
	for _, p := range args.Args[1:] {
		if err := api.Chmod(p, mode); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

type mountsCommand struct{}

func (c *mountsCommand) Name() string              { return "mounts" }
func (c *mountsCommand) Description() string       { return "List mounted filesystems" }
func (c *mountsCommand) Usage() string             { return "mounts" }
func (c *mountsCommand) GetFlags() *CommandFlagSet { return nil }

func (c *mountsCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	for _, e := range api.Mounts() {
		mode := "rw"
		if e.Flags.IsReadOnly() {
			mode = "ro"
		}
		fmt.Fprintf(w, "%-10s %-8s on %-8s %s (%s, mounted %s)\n",
			e.FileSystem.Name(), e.BlockDevice.Name(), e.Prefix, mode,
			e.ID.String()[:8], humanize.Time(e.MountTime))
	}
	return 0, nil
}

type dfCommand struct{}

func (c *dfCommand) Name() string        { return "df" }
func (c *dfCommand) Description() string { return "Show block device sizes of mounts" }
func (c *dfCommand) Usage() string       { return "df [-H]" }

func (c *dfCommand) GetFlags() *CommandFlagSet {
	return NewFlagSet(
		&CommandFlag{Name: "human", Short: "H", Type: "bool", Description: "Human readable sizes"},
	)
}

func (c *dfCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	fmt.Fprintf(w, "%-8s %8s %10s %10s %s\n", "Device", "Block", "Blocks", "Size", "Mounted on")
	for _, e := range api.Mounts() {
		bdev := e.BlockDevice
		size := int64(bdev.BlockSize()) * bdev.NumBlocks()
		fmt.Fprintf(w, "%-8s %8d %10d %10s %s\n",
			bdev.Name(), bdev.BlockSize(), bdev.NumBlocks(),
			formatSize(size, args.Bool("human")), e.Prefix)
	}
	return 0, nil
}

type devsCommand struct{}

func (c *devsCommand) Name() string              { return "devs" }
func (c *devsCommand) Description() string       { return "List registered devices" }
func (c *devsCommand) Usage() string             { return "devs" }
func (c *devsCommand) GetFlags() *CommandFlagSet { return nil }

func (c *devsCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	for _, e := range api.Devices() {
		state := "closed"
		if e.Handle != nil && e.Handle.IsOpen() {
			state = fmt.Sprintf("open fd %d", e.Handle.Descriptor())
		}
		tty := ""
		if e.Device.Isatty() {
			tty = " tty"
		}
		fmt.Fprintf(w, "%s%s%s (%s)\n", api.DevicePrefix(), e.Device.Name(), tty, state)
	}
	return 0, nil
}

type syncCommand struct{}

func (c *syncCommand) Name() string              { return "sync" }
func (c *syncCommand) Description() string       { return "Flush all mounted filesystems" }
func (c *syncCommand) Usage() string             { return "sync" }
func (c *syncCommand) GetFlags() *CommandFlagSet { return nil }

func (c *syncCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	api.Sync()
	return 0, nil
}

type logCommand struct{}

func (c *logCommand) Name() string              { return "log" }
func (c *logCommand) Description() string       { return "Show or set the log level" }
func (c *logCommand) Usage() string             { return "log [debug|info|warn|error|off]" }
func (c *logCommand) GetFlags() *CommandFlagSet { return nil }

func (c *logCommand) Execute(ctx context.Context, api API, args *CommandArgs, w io.Writer) (int, error) {
	logger := api.Logger()
	if len(args.Args) == 0 {
		fmt.Fprintln(w, logger.Level())
		return 0, nil
	}

	level, err := log.Parse(args.Args[0])
	if err != nil {
		return ExitUsage, err
	}
	logger.SetLevel(level)
	logger.Info("log: level set to %s", level)
	return 0, nil
}

func sortedFlags(set *CommandFlagSet) []string {
	names := make([]string, 0, len(set.Flags))
	for name := range set.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
