package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/queryguard/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if stderrors.As(err, &exit) {
			errors.Print(stderr, exit.err)
			return exit.code
		}
		errors.Print(stderr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "queryguard",
		Short: "Typed, validated URL query state",
		Long: `Queryguard treats the URL query string as typed application state.

Decode and encode query strings canonically, validate them against a
schema descriptor, or serve a shared history over HTTP and WebSocket:

  • Canonical key=value encoding with sorted keys
  • Pick (per-field) or strict (all-or-nothing) validation
  • Schema descriptors from local files or S3
  • Prometheus metrics and OpenTelemetry tracing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		decodeCmd(),
		encodeCmd(),
		validateCmd(),
		serveCmd(),
		initCmd(),
		versionCmd(),
	)

	return rootCmd
}

// exitError carries a non-default exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
