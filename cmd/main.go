package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// version is the program version. It can be overridden at build time with -ldflags "-X main.version=..."
var version = "2.5.0"

// timestampWriter prefixes each flushed line with an RFC3339 timestamp.
type timestampWriter struct {
	w   io.Writer
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write buffers bytes until a newline is found; for each full line, write a timestamped
// line to the underlying writer. Partial lines are kept in the buffer.
func (t *timestampWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			t.buf.Reset()
			t.buf.WriteString(line)
			break
		}
		ts := time.Now().Format(time.RFC3339)
		if _, err := t.w.Write([]byte(ts + " " + line)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// terminalWriter wraps an io.Writer and exposes an Fd method so libraries that
// inspect the file descriptor (for TTY detection) can work with wrapped writers.
type terminalWriter struct {
	w  io.Writer
	fd uintptr
}

func (tw *terminalWriter) Write(p []byte) (int, error) { return tw.w.Write(p) }

// Fd exposes the underlying file descriptor (e.g., os.Stderr.Fd()).
func (tw *terminalWriter) Fd() uintptr { return tw.fd }

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// newLogger builds the run logger. Logs go to stderr and, when logFile is set,
// are appended to that file as well. The returned func closes the log file.
func newLogger(stderr io.Writer, logFile, level string, verbose bool) (*log.Logger, func()) {
	closeFn := func() {}
	out := stderr
	var fileErr error
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			// write to both stderr and file so running interactively still shows logs
			out = io.MultiWriter(stderr, f)
			closeFn = func() { _ = f.Close() }
		} else {
			fileErr = err
		}
	}

	var w io.Writer = &timestampWriter{w: out}
	if f, ok := stderr.(*os.File); ok {
		w = &terminalWriter{w: w, fd: f.Fd()}
	}
	logger := log.New(w)

	// apply log level from flags/config (flags override config)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		switch strings.ToLower(level) {
		case "debug":
			logger.SetLevel(log.DebugLevel)
		case "info", "":
			logger.SetLevel(log.InfoLevel)
		case "warn", "warning":
			logger.SetLevel(log.WarnLevel)
		case "error":
			logger.SetLevel(log.ErrorLevel)
		default:
			logger.SetLevel(log.InfoLevel)
			logger.Warn("unknown log_level in config, defaulting to info", "provided", level)
		}
	}
	if fileErr != nil {
		logger.Warn("log_file specified but could not be opened; logging to stderr only", "path", logFile, "err", fileErr)
	}
	return logger, closeFn
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "abscreen",
		Short: "Screen paired antibody heavy/light chains for normal CDRH3 and cysteine structure",
		Long: `abscreen reads a FASTA file of paired antibody light and heavy chains and
writes the pairs judged normal and the pairs filtered out to separate files.

Identifiers must mark the chain with "L|" or "H|" and carry the same text after
the "|" for both chains of a pair, e.g.

  >8E10_L|8E10 - (HUMAN) human
  >8E10_H|8E10 - (HUMAN) human

The order of light and heavy chain does not matter and sequences may be wrapped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.json or config.yaml (optional)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose (debug) logging")

	root.AddCommand(
		newScreenCmd(opts),
		newNormalizeCmd(),
		newClassifyCmd(),
		newRunsCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version and exit",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "abscreen", version)
			},
		},
	)
	return root
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "abscreen:", err)
		os.Exit(1)
	}
}
