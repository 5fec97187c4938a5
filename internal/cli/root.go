package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chemvis/internal/client"
	"chemvis/internal/infrastructure"
	"chemvis/pkg/contracts"
)

type rootOptions struct {
	cfgFile  string
	server   string
	user     string
	password string
	timeout  time.Duration
	retryMax int
	debug    bool
}

// app carries what every subcommand needs
type app struct {
	opts      rootOptions
	presenter *countingPresenter
	errOut    io.Writer

	// newAPI is replaced in tests
	newAPI func(cfg client.Config, logger *slog.Logger) (API, error)
}

// countingPresenter remembers whether an error has been shown
type countingPresenter struct {
	Presenter
	errors int
}

func (p *countingPresenter) Error(message string) {
	p.errors++
	p.Presenter.Error(message)
}

func newApp(presenter Presenter, errOut io.Writer) *app {
	return &app{
		presenter: &countingPresenter{Presenter: presenter},
		errOut:    errOut,
		newAPI: func(cfg client.Config, logger *slog.Logger) (API, error) {
			return client.New(cfg, client.WithLogger(logger))
		},
	}
}

// NewRootCommand builds the chemvis command tree writing to out and errOut
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	return newApp(NewTextPresenter(out, errOut), errOut).rootCommand(out)
}

func (a *app) rootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "chemvis",
		Short:         "Upload equipment telemetry and browse dataset summaries",
		Long:          `chemvis uploads chemical-equipment CSV/XLSX files to a chemvis server, lists the retained history and downloads reports and charts.`,
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(a.errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.opts.cfgFile, "config", "", "config file (default is ~/.chemvis/config.yaml)")
	f.StringVar(&a.opts.server, "server", "", "server base URL (overrides config)")
	f.StringVar(&a.opts.user, "user", "", "basic auth username (overrides config)")
	f.StringVar(&a.opts.password, "password", "", "basic auth password (overrides config)")
	f.DurationVar(&a.opts.timeout, "timeout", 0, "HTTP timeout (overrides config)")
	f.IntVar(&a.opts.retryMax, "retry-max", 0, "max retries for failed reads (overrides config)")
	f.BoolVar(&a.opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.uploadCommand(),
		a.historyCommand(),
		a.showCommand(),
		a.rowsCommand(),
		a.reportCommand(),
		a.chartCommand(),
		a.watchCommand(),
		a.configCommand(),
	)
	return root
}

// clientConfig merges file, env and flag settings
func (a *app) clientConfig(cmd *cobra.Command) (client.Config, error) {
	cfg, err := LoadConfig(a.opts.cfgFile)
	if err != nil {
		return client.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("server") {
		cfg.BaseURL = a.opts.server
	}
	if f.Changed("user") {
		cfg.Username = a.opts.user
	}
	if f.Changed("password") {
		cfg.Password = a.opts.password
	}
	if f.Changed("timeout") {
		cfg.Timeout = a.opts.timeout
	}
	if f.Changed("retry-max") {
		cfg.RetryMax = a.opts.retryMax
	}
	return cfg, nil
}

func (a *app) commands(cmd *cobra.Command) (*Commands, error) {
	cfg, err := a.clientConfig(cmd)
	if err != nil {
		a.presenter.Error(err.Error())
		return nil, err
	}

	level := "warn"
	if a.opts.debug {
		level = "debug"
	}
	logger := infrastructure.NewLogger(a.errOut, level, false)

	api, err := a.newAPI(cfg, logger)
	if err != nil {
		a.presenter.Error(err.Error())
		return nil, err
	}
	return NewCommands(api, a.presenter), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid dataset id %q: must be a positive integer", s)
	}
	return id, nil
}

// withID parses the single id argument before running fn
func (a *app) withID(fn func(cmd *cobra.Command, c *Commands, id int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			a.presenter.Error(err.Error())
			return err
		}
		c, err := a.commands(cmd)
		if err != nil {
			return err
		}
		return fn(cmd, c, id)
	}
}

func (a *app) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV or XLSX file and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.commands(cmd)
			if err != nil {
				return err
			}
			return c.Upload(cmd.Context(), args[0])
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"list", "ls"},
		Short:   "List the most recent datasets, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.commands(cmd)
			if err != nil {
				return err
			}
			return c.History(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of datasets to list (server default when 0)")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the summary of one dataset",
		Args:  cobra.ExactArgs(1),
		RunE: a.withID(func(cmd *cobra.Command, c *Commands, id int64) error {
			return c.Details(cmd.Context(), id)
		}),
	}
}

func (a *app) rowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rows <id>",
		Short: "List the equipment rows uploaded with a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: a.withID(func(cmd *cobra.Command, c *Commands, id int64) error {
			return c.Rows(cmd.Context(), id)
		}),
	}
}

func (a *app) reportCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Download the report of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: a.withID(func(cmd *cobra.Command, c *Commands, id int64) error {
			return c.DownloadReport(cmd.Context(), id, format, output)
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", "pdf", "report format: pdf, xlsx or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default report_<id>.<format>)")
	return cmd
}

func (a *app) chartCommand() *cobra.Command {
	var kind, output string
	cmd := &cobra.Command{
		Use:   "chart <id>",
		Short: "Render a PNG bar chart of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: a.withID(func(cmd *cobra.Command, c *Commands, id int64) error {
			return c.Chart(cmd.Context(), id, kind, output)
		}),
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", ChartDistribution, "chart kind: distribution or averages")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default chart_<id>_<kind>.png)")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print dataset events as they happen (Ctrl+C to stop)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.commands(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.Watch(ctx)
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or create the client configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.cfgFile
			if path == "" {
				p, err := DefaultConfigPath()
				if err != nil {
					a.presenter.Error(err.Error())
					return err
				}
				path = p
			}

			if _, err := os.Stat(path); err == nil {
				if !force {
					err := fmt.Errorf("%s already exists (use --force to overwrite)", path)
					a.presenter.Error(err.Error())
					return err
				}
			} else {
				// Nothing to read yet; start from env and defaults.
				a.opts.cfgFile = ""
			}

			cfg, err := a.clientConfig(cmd)
			if err != nil {
				a.presenter.Error(err.Error())
				return err
			}
			if err := SaveConfig(cfg, path); err != nil {
				a.presenter.Error(err.Error())
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.clientConfig(cmd)
			if err != nil {
				a.presenter.Error(err.Error())
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "base_url: %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "username: %s\n", cfg.Username)
			fmt.Fprintf(out, "password: %s\n", maskSecret(cfg.Password))
			fmt.Fprintf(out, "timeout: %s\n", formatDuration(cfg.Timeout))
			fmt.Fprintf(out, "retry_max: %d\n", cfg.RetryMax)
			fmt.Fprintf(out, "retry_base_delay: %s\n", formatDuration(cfg.RetryBaseDelay))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// Execute runs the CLI against os.Args and returns the process exit code
func Execute() int {
	a := newApp(NewTextPresenter(os.Stdout, os.Stderr), os.Stderr)
	return a.execute(context.Background(), os.Stdout, os.Args[1:])
}

func (a *app) execute(ctx context.Context, out io.Writer, args []string) int {
	root := a.rootCommand(out)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		// Usage errors from cobra have not been shown yet.
		if a.presenter.errors == 0 {
			a.presenter.Error(err.Error())
		}
		return 1
	}
	return 0
}
