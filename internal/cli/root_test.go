package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestIsUsageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unknown command", err: stderrors.New(`unknown command "foo" for "scatter"`), want: true},
		{name: "flag error", err: &usageError{err: stderrors.New("unknown flag: --foo")}, want: true},
		{name: "wrapped flag error", err: fmt.Errorf("run: %w", &usageError{err: stderrors.New("bad")}), want: true},
		{name: "bad flag value", err: errors.New(errors.ErrUsage, "--known-hosts must be off or strict", ""), want: true},
		{name: "config error", err: errors.New(errors.ErrConfig, "bad inventory", ""), want: false},
		{name: "other error", err: stderrors.New("connection failed"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUsageError(tt.err))
		})
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		runErr     error
		want       int
		wantStderr string
	}{
		{name: "success", runErr: nil, want: 0},
		{name: "run verdict", runErr: errors.NewExitError(1), want: 1},
		{name: "config error", runErr: errors.New(errors.ErrConfig, "No hosts in inventory", "Add a hosts list."), want: 1, wantStderr: "✗ No hosts in inventory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &cobra.Command{Use: "scatter", SilenceErrors: true, SilenceUsage: true}
			root.AddCommand(&cobra.Command{
				Use:  "boom",
				RunE: func(*cobra.Command, []string) error { return tt.runErr },
			})

			var stderr bytes.Buffer
			code := execute(context.Background(), root, []string{"boom"}, &stderr)

			assert.Equal(t, tt.want, code)
			if tt.wantStderr == "" {
				assert.Empty(t, stderr.String(), "exit errors print nothing")
			} else {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := execute(context.Background(), newRootCmd(), []string{"deploy"}, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), `unknown command "deploy"`)
}

func TestExecute_UnknownFlag(t *testing.T) {
	var stderr bytes.Buffer
	code := execute(context.Background(), newRootCmd(), []string{"run", "--turbo"}, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "unknown flag: --turbo")
}

func TestExecute_NoArgsShowsHelp(t *testing.T) {
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)

	code := execute(context.Background(), root, []string{}, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "scatter fans a single command out")
	assert.Contains(t, stdout.String(), "run")
}
