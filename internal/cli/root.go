package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/cobra"
)

// Exit statuses beyond the run verdict.
const (
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks errors caused by a malformed command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// newRootCmd builds the command tree. Each call returns an independent tree
// so tests can execute commands side by side.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "scatter",
		Short: "Run one command on many hosts over SSH, concurrently",
		Long: `scatter fans a single command out to every host in an inventory,
running up to --limit SSH sessions at once. Each host tries its credentials
in order, retries failed connections with backoff, and reports exactly one
result. The exit status is 0 only when every host succeeded.

Examples:
  scatter run "uptime"
  scatter run -i prod.yaml --limit 100 --tag web "systemctl is-active nginx"
  scatter run --dry-run --username-file users.txt --password-file pw.txt "id"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file supplying flag defaults (default ~/.config/scatter/config.yaml)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(newRunCmd(&cfgFile))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI and exits the process with the resulting status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRootCmd(), os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs root with args and maps the outcome to an exit status,
// printing any error that hasn't already been reported.
func execute(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *errors.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	fmt.Fprintln(stderr, strings.TrimRight(err.Error(), "\n"))
	if isUsageError(err) {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		return exitUsage
	}
	return exitFailure
}

// isUsageError reports whether err came from parsing the command line
// rather than from running it.
func isUsageError(err error) bool {
	var ue *usageError
	if stderrors.As(err, &ue) {
		return true
	}
	return errors.IsCode(err, errors.ErrUsage) || isUnknownCommandError(err)
}

// isUnknownCommandError matches cobra's unknown command message, which
// doesn't go through the flag error hook.
func isUnknownCommandError(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command ")
}
