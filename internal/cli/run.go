package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/internal/logger"
	"github.com/rileyhilliard/scatter/internal/parallel"
	"github.com/rileyhilliard/scatter/internal/parallel/dashboard"
	"github.com/rileyhilliard/scatter/internal/parallel/logs"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
	"github.com/rileyhilliard/scatter/internal/ui"
	"github.com/rileyhilliard/scatter/pkg/sshutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Hooks swapped in tests.
var (
	appFs afero.Fs = afero.NewOsFs()

	newConnector = func(opts sshutil.DialerOptions) sshutil.Connector {
		return sshutil.NewDialer(opts)
	}
	agentAvailable = sshutil.HasAmbientKeys
	closeAgent     = sshutil.CloseAgent
	loadSSHConfig  = func() (*sshutil.SSHConfig, error) {
		return sshutil.LoadSSHConfig(sshutil.DefaultSSHConfigPath())
	}
	isTerminal  = ui.IsTerminal
	askPassword = promptPassword
)

func newRunCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [command]",
		Short: "Run a command on every inventory host",
		Long: `Run a command on every host in the inventory, up to --limit at a time.

The command comes from the host's own 'command:' entry, then --command-file,
then the arguments given here. Each host tries key authentication first and
then every password, for every username, in order.

Examples:
  scatter run "uptime"
  scatter run --limit 20 --retry-attempts 3 "apt-get -qq update"
  scatter run --tag db --exclude-tag canary --command-file migrate.sh
  scatter run --hosts 'web-*' --save-dir ./out --log-file run.jsonl "df -h /"
  scatter run --dry-run "reboot"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, *cfgFile)
			if err != nil {
				return err
			}
			return runScatter(cmd.Context(), s, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	addRunFlags(cmd)
	return cmd
}

// runPlan is the resolved, not yet executed, run.
type runPlan struct {
	targets    []target.Target
	knownHosts config.KnownHostsPolicy
}

// runScatter resolves the targets and either prints the plan (--dry-run) or
// executes it. A run with any non-Ok host returns an ExitError.
func runScatter(ctx context.Context, s *config.Settings, inline string, out io.Writer) error {
	ui.ApplyColorMode(s.Color, out)
	if s.Verbose >= 2 {
		logger.EnableDebug(true)
	}
	log := logger.NewEnvLogger("[scatter]")
	logger.SetDefault(log)
	sshutil.WarningHandler = func(msg string) { logger.Default().Warn("%s", msg) }

	plan, err := resolvePlan(s, inline, log)
	if err != nil {
		return err
	}

	agent := agentAvailable()
	if s.DryRun {
		renderPlan(out, plan, s.Limit, agent, s.Verbose >= 1)
		return nil
	}

	sum, files, err := executePlan(ctx, s, plan, agent, out, log)
	if err != nil {
		return err
	}

	if s.Quiet {
		fmt.Fprintln(out, parallel.FormatBriefSummary(sum))
	} else {
		if s.Verbose >= 1 {
			fmt.Fprintln(out, ui.RenderResultTable(resultRows(sum), reasonWidth(out)))
		}
		parallel.RenderSummaryTo(out, sum, parallel.SummaryConfig{
			SaveDir:        files.saveDir,
			LogFile:        files.logFile,
			MaxOutputLines: parallel.DefaultSummaryConfig().MaxOutputLines,
		})
	}

	if code := sum.ExitCode(); code != 0 {
		return errors.NewExitError(code)
	}
	return nil
}

// resolvePlan loads every input file and resolves the targets. Nothing here
// touches the network.
func resolvePlan(s *config.Settings, inline string, log logger.Logger) (*runPlan, error) {
	inv, err := config.LoadInventory(appFs, config.ExpandPath(s.Inventory))
	if err != nil {
		return nil, err
	}

	in := target.Input{
		Inventory: inv,
		Overrides: target.Overrides{
			Username:       s.Username,
			Port:           s.Port,
			Identity:       s.Identity,
			KnownHosts:     s.KnownHosts,
			ConnectTimeout: s.ConnectTimeout,
			CommandTimeout: s.CommandTimeout,
			RetryAttempts:  s.RetryAttempts,
			PTY:            s.PTY,
		},
		Filter: target.Filter{
			Tags:         s.Tags,
			ExcludeTags:  s.ExcludeTags,
			HostPatterns: s.HostPatterns,
		},
		InlineCommand: inline,
	}

	if s.UsernameFile != "" {
		if in.Usernames, err = readList(s.UsernameFile, "usernames"); err != nil {
			return nil, err
		}
	}
	if s.PasswordFile != "" {
		if in.Passwords, err = readList(s.PasswordFile, "passwords"); err != nil {
			return nil, err
		}
	}
	if s.CommandFile != "" {
		if in.FileCommand, err = config.ReadCommandFile(appFs, s.CommandFile); err != nil {
			return nil, err
		}
	}
	if s.AskPass {
		if in.Overrides.Password, err = askPassword(); err != nil {
			return nil, err
		}
	}

	sshCfg, err := loadSSHConfig()
	if err != nil {
		log.Warn("ignoring ssh config: %v", err)
		sshCfg = nil
	}

	targets, err := target.NewResolver(sshCfg).Resolve(in)
	if err != nil {
		return nil, err
	}

	return &runPlan{
		targets:    targets,
		knownHosts: target.RunKnownHosts(inv, in.Overrides),
	}, nil
}

// readList reads a credential list file. A file with no values is a
// mistake, not a request to fall back to the single value.
func readList(path, what string) ([]string, error) {
	values, err := config.ReadCredentialList(appFs, path)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("No %s in %s", what, path),
			"List files hold one value per line; blank lines are skipped.")
	}
	return values, nil
}

// executePlan runs the plan and returns the summary once every sink has
// drained.
func executePlan(ctx context.Context, s *config.Settings, plan *runPlan, agent bool, out io.Writer, log logger.Logger) (parallel.Summary, *fileSinks, error) {
	strict := plan.knownHosts == config.KnownHostsStrict
	knownHostsFile := config.ExpandPath(s.KnownHostsFile)
	if strict {
		if err := checkKnownHostsFile(knownHostsFile); err != nil {
			return parallel.Summary{}, nil, err
		}
	}

	files, err := openFileSinks(s)
	if err != nil {
		return parallel.Summary{}, nil, err
	}
	sinks := files.sinks

	connector := newConnector(sshutil.DialerOptions{
		StrictHostKeys: strict,
		KnownHostsFile: knownHostsFile,
		ForwardAgent:   s.ForwardAgent,
	})
	defer closeAgent()

	exec := session.NewExecutor(connector, agent)
	exec.Logger = logger.NewEnvLogger("[session]")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var dash *dashboard.Dashboard
	switch parallel.ResolveOutputMode(s.Progress, s.Quiet, isTerminal(out)) {
	case parallel.OutputProgress:
		dash = dashboard.Start(plan.targets, s.Limit, cancel, tea.WithOutput(out))
		exec.Observer = dash.Bridge()
		sinks = append(sinks, dash.Bridge())
	case parallel.OutputStream:
		sinks = append(sinks, parallel.NewStreamPrinter(out, parallel.StreamOptions{
			Total:      len(plan.targets),
			ShowOutput: s.ShowOutput,
			ShowStderr: s.ShowStderr,
		}))
	}

	sched := parallel.NewScheduler(exec, s.Limit)
	sched.SetLogger(log)
	agg := parallel.NewAggregator(sinks...)
	agg.SetLogger(log)

	log.Debug("running %d hosts, limit %d, known_hosts %s", len(plan.targets), s.Limit, plan.knownHosts)
	sum, sinkErr := agg.Consume(ctx, sched.Run(ctx, plan.targets))
	if sinkErr != nil {
		log.Warn("%v", sinkErr)
	}

	if dash != nil {
		if err := dash.Wait(); err != nil {
			log.Warn("progress view: %v", err)
		}
	}

	log.Debug("peak concurrency %d", sched.MaxInFlight())
	return sum, files, nil
}

// checkKnownHostsFile fails the run before dispatch when strict checking
// has nothing to check against.
func checkKnownHostsFile(path string) error {
	if path == "" {
		path = config.ExpandPath("~/.ssh/known_hosts")
	}
	if _, err := appFs.Stat(path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read known_hosts file "+path,
			"Pass --known-hosts-file, or use --known-hosts off to skip host key checks.")
	}
	return nil
}

// fileSinks are the sinks behind --log-file and --save-dir, with the
// expanded paths they write to.
type fileSinks struct {
	sinks   []parallel.Sink
	logFile string
	saveDir string
}

// openFileSinks opens --log-file and --save-dir. Both are CONFIG errors
// when they can't be created, so nothing has been dialed yet.
func openFileSinks(s *config.Settings) (*fileSinks, error) {
	files := &fileSinks{}

	if s.LogFile != "" {
		w, err := logs.NewJSONLWriter(appFs, s.LogFile)
		if err != nil {
			return nil, err
		}
		files.sinks = append(files.sinks, w)
		files.logFile = w.Path()
	}

	if s.SaveDir != "" {
		w, err := logs.NewSaveDirWriter(appFs, s.SaveDir)
		if err != nil {
			for _, opened := range files.sinks {
				_ = opened.Close()
			}
			return nil, err
		}
		files.sinks = append(files.sinks, w)
		files.saveDir = w.Dir()
	}

	return files, nil
}
