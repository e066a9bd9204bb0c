// Package debugger implements the post-mortem prompt opened on the first
// failure of a run with debug-on-failure enabled.
package debugger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"

	"snektest/internal/engine"
	"snektest/pkg/logging"
)

const prompt = "(sdb) "

// sourceContext is the number of lines shown around the failing line.
const sourceContext = 5

// errQuit ends the session.
var errQuit = errors.New("quit")

// lineReader is the part of readline the command loop needs.
type lineReader interface {
	Readline() (string, error)
}

// Debugger opens a readline prompt on the terminal.
type Debugger struct {
	stdin       io.ReadCloser
	stdout      io.Writer
	source      fs.FS
	historyFile string
}

// Option configures a Debugger.
type Option func(*Debugger)

// WithStdio overrides the terminal streams.
func WithStdio(stdin io.ReadCloser, stdout io.Writer) Option {
	return func(d *Debugger) {
		d.stdin = stdin
		d.stdout = stdout
	}
}

// WithSource sets the file system test files are read from by "list".
func WithSource(fsys fs.FS) Option {
	return func(d *Debugger) {
		d.source = fsys
	}
}

// New creates a debugger on the process' terminal.
func New(opts ...Option) *Debugger {
	d := &Debugger{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		historyFile: filepath.Join(os.TempDir(), ".snektest_debugger_history"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// PostMortem runs the prompt until the user continues, input ends or ctx is
// cancelled.
func (d *Debugger) PostMortem(ctx context.Context, pm engine.PostMortem) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     d.historyFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           d.stdin,
		Stdout:          d.stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	return newSession(pm, rl, d.stdout, d.source).run(ctx)
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("where"),
		readline.PcItem("error"),
		readline.PcItem("list"),
		readline.PcItem("out"),
		readline.PcItem("p"),
		readline.PcItem("continue"),
		readline.PcItem("quit"),
		readline.PcItem("help"),
	)
}

// session is one post-mortem conversation.
type session struct {
	pm     engine.PostMortem
	in     lineReader
	out    io.Writer
	source fs.FS
}

func newSession(pm engine.PostMortem, in lineReader, out io.Writer, source fs.FS) *session {
	return &session{pm: pm, in: in, out: out, source: source}
}

func (s *session) run(ctx context.Context) error {
	fmt.Fprintf(s.out, "%s %s\n", text.FgYellow.Sprint("🐞"), text.FgYellow.Sprintf("Post-mortem for %s", s.pm.Test))
	s.printError()
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := s.in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if err := s.execute(input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "%s\n", text.FgRed.Sprintf("Error: %v", err))
		}
	}
}

func (s *session) execute(input string) error {
	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "help", "h", "?":
		s.printHelp()
	case "where", "w", "bt":
		s.printTrace()
	case "error", "e":
		s.printError()
	case "list", "l":
		return s.printSource()
	case "out", "o":
		s.printOutput()
	case "p", "print":
		return s.eval(arg)
	case "continue", "c", "quit", "q", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", command)
	}
	return nil
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  where, w, bt      show the traceback")
	fmt.Fprintln(s.out, "  error, e          show the failure")
	fmt.Fprintln(s.out, "  list, l           show the source around the failing line")
	fmt.Fprintln(s.out, "  out, o            show the captured output")
	fmt.Fprintln(s.out, "  p <expr>          evaluate an expression in the module")
	fmt.Fprintln(s.out, "  continue, c, q    leave the debugger and finish the run")
}

func (s *session) printError() {
	detail := s.pm.Detail
	if detail == "" && s.pm.Err != nil {
		detail = s.pm.Err.Error()
	}
	fmt.Fprintf(s.out, "%s\n", text.FgRed.Sprint(detail))
}

func (s *session) printTrace() {
	if len(s.pm.Trace) == 0 {
		fmt.Fprintln(s.out, "No traceback available")
		return
	}
	fmt.Fprint(s.out, s.pm.Trace.String())
}

func (s *session) printOutput() {
	if s.pm.Output == "" {
		fmt.Fprintln(s.out, "No captured output")
		return
	}
	fmt.Fprint(s.out, s.pm.Output)
	if !strings.HasSuffix(s.pm.Output, "\n") {
		fmt.Fprintln(s.out)
	}
}

func (s *session) printSource() error {
	if len(s.pm.Trace) == 0 {
		return errors.New("no traceback available")
	}
	if s.source == nil {
		return errors.New("source is not available")
	}
	frame := s.pm.Trace[len(s.pm.Trace)-1]

	f, err := s.source.Open(filepath.ToSlash(frame.File))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", frame.File, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if n < frame.Line-sourceContext || n > frame.Line+sourceContext {
			continue
		}
		marker := "  "
		if n == frame.Line {
			marker = "->"
		}
		fmt.Fprintf(s.out, "%s %4d  %s\n", marker, n, scanner.Text())
	}
	return scanner.Err()
}

func (s *session) eval(expr string) error {
	if expr == "" {
		return errors.New("usage: p <expr>")
	}
	if s.pm.Eval == nil {
		return errors.New("this module cannot evaluate expressions")
	}
	v, err := s.pm.Eval.Eval(expr)
	if err != nil {
		return err
	}
	logging.Debug("Debugger", "evaluated %q", expr)
	fmt.Fprintln(s.out, v)
	return nil
}
