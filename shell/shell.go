// Package shell is a small command interpreter over the runtime API. It is
// served on any descriptor, usually a serial console.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/mattn/go-shellwords"
	"github.com/mwantia/pio/data"
	"github.com/mwantia/pio/log"
)

const (
	DefaultPrompt  = "pio> "
	DefaultMaxLine = 256

	ExitUsage    = 2
	ExitNotFound = 127
)

// ErrExit is returned by a command that ends the session.
var ErrExit = errors.New("shell: exit")

type Shell struct {
	log      *log.Logger
	api      API
	commands map[string]Command

	prompt  string
	maxLine int
	echo    bool
	crlf    bool
}

type Option func(*Shell)

func WithPrompt(prompt string) Option {
	return func(s *Shell) {
		s.prompt = prompt
	}
}

// WithMaxLine bounds the line editor; further input is ignored until the
// line is submitted.
func WithMaxLine(n int) Option {
	return func(s *Shell) {
		if n > 0 {
			s.maxLine = n
		}
	}
}

// WithoutEcho stops echoing typed characters back, for terminals that
// echo locally.
func WithoutEcho() Option {
	return func(s *Shell) {
		s.echo = false
	}
}

// WithCRLF translates every written newline to CR LF, as raw terminals
// require.
func WithCRLF() Option {
	return func(s *Shell) {
		s.crlf = true
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Shell) {
		if logger != nil {
			s.log = logger.Named("shell")
		}
	}
}

// New returns a shell with every builtin command registered.
func New(api API, opts ...Option) *Shell {
	s := &Shell{
		log:      log.Discard(),
		api:      api,
		commands: make(map[string]Command),
		prompt:   DefaultPrompt,
		maxLine:  DefaultMaxLine,
		echo:     true,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, cmd := range builtins(s) {
		s.commands[cmd.Name()] = cmd
	}
	return s
}

// Register adds cmd, failing with EEXIST when the name is taken.
func (s *Shell) Register(cmd Command) error {
	if cmd == nil || cmd.Name() == "" {
		return data.EINVAL
	}
	if _, exists := s.commands[cmd.Name()]; exists {
		return data.EEXIST
	}

	s.commands[cmd.Name()] = cmd
	return nil
}

// Commands returns the registered commands sorted by name.
func (s *Shell) Commands() []Command {
	cmds := make([]Command, 0, len(s.commands))
	for _, cmd := range s.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Name() < cmds[j].Name()
	})
	return cmds
}

// Execute runs a single command line and returns its exit code. Words are
// split with shell quoting rules.
func (s *Shell) Execute(ctx context.Context, w io.Writer, line string) (int, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return ExitUsage, err
	}
	if len(words) == 0 {
		return 0, nil
	}

	cmd, ok := s.commands[words[0]]
	if !ok {
		return ExitNotFound, fmt.Errorf("%s: command not found", words[0])
	}

	args, err := NewParser(cmd.GetFlags()).Parse(words[1:])
	if err != nil {
		return ExitUsage, fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	s.log.Debug("Execute: %s %v", cmd.Name(), args.Raw)
	code, err := cmd.Execute(ctx, s.api, args, w)
	if err != nil && !errors.Is(err, ErrExit) {
		return code, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return code, err
}

// Serve runs the line editor on fd until the input ends, a command exits
// the session or ctx is done. Read timeouts on fd are used to poll ctx.
func (s *Shell) Serve(ctx context.Context, fd int) error {
	out := &descriptorWriter{api: s.api, fd: fd, crlf: s.crlf}
	line := make([]byte, 0, s.maxLine)
	buf := make([]byte, 32)
	lastCR := false

	s.log.Info("Serve: session started on fd %d", fd)
	defer s.log.Info("Serve: session on fd %d ended", fd)

	io.WriteString(out, s.prompt)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.api.Read(fd, buf)
		if err != nil {
			if errors.Is(err, data.ETIMEDOUT) {
				continue
			}
			return err
		}
		if n == 0 {
			return nil
		}

		for _, c := range buf[:n] {
			if c == '\n' && lastCR {
				lastCR = false
				continue
			}
			lastCR = c == '\r'

			switch c {
			case '\r', '\n':
				io.WriteString(out, "\n")
				code, err := s.Execute(ctx, out, string(line))
				if errors.Is(err, ErrExit) {
					return nil
				}
				if err != nil {
					s.log.Debug("Serve: exit code %d: %v", code, err)
					fmt.Fprintf(out, "%v\n", err)
				}
				line = line[:0]
				io.WriteString(out, s.prompt)

			case 0x7f, '\b':
				if len(line) > 0 {
					line = line[:len(line)-1]
					s.echoBytes(out, "\b \b")
				}

			case 0x03: // ^C
				line = line[:0]
				io.WriteString(out, "^C\n")
				io.WriteString(out, s.prompt)

			case 0x04: // ^D
				if len(line) == 0 {
					io.WriteString(out, "\n")
					return nil
				}

			default:
				if c < ' ' || len(line) >= s.maxLine {
					continue
				}
				line = append(line, c)
				s.echoBytes(out, string(c))
			}
		}
	}
}

func (s *Shell) echoBytes(w io.Writer, text string) {
	if s.echo {
		io.WriteString(w, text)
	}
}

// descriptorWriter writes to a runtime descriptor until every byte is taken.
type descriptorWriter struct {
	api  API
	fd   int
	crlf bool
}

func (w *descriptorWriter) Write(p []byte) (int, error) {
	if w.crlf && bytes.IndexByte(p, '\n') >= 0 {
		if err := w.writeAll(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	if err := w.writeAll(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *descriptorWriter) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := w.api.Write(w.fd, p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
