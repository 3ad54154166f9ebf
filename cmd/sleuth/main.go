package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/shutdown"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smhanov/sleuth"
	"github.com/smhanov/sleuth/config"
	"github.com/smhanov/sleuth/telemetry"
)

// Exit codes
const (
	exitSuccess   = 0
	exitError     = 1
	exitExhausted = 2
)

// exitCodeError carries a non-zero exit code out of a command.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

// Options carries the dependencies of a command so tests can swap them.
type Options struct {
	AgentFactory AgentFactory
	Stdout       io.Writer
}

func (o Options) factory() AgentFactory {
	if o.AgentFactory != nil {
		return o.AgentFactory
	}
	return DefaultAgentFactory
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

var rootCmd = &cobra.Command{
	Use:           "sleuth",
	Short:         "sleuth - finds documented defaults on the web",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var findCmd = &cobra.Command{
	Use:   "find [subject] [parameter]",
	Short: "Search the web until the documented default is found",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFind(cmd.Context(), args, Options{Stdout: cmd.OutOrStdout()})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [subject] [parameter]",
	Short: "Re-run a search on a cron schedule and report when the answer changes",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args, Options{Stdout: cmd.OutOrStdout()})
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool descriptors offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTools(Options{Stdout: cmd.OutOrStdout()})
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.OutOrStdout())
	},
}

var (
	configFlag       string
	subjectFlag      string
	parameterFlag    string
	instructionsFlag string
	budgetFlag       int
	deciderFlag      string
	searchFlag       string
	searchFirstFlag  bool
	debugFlag        bool
	scheduleFlag     string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default ~/.sleuth/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log at debug level")

	for _, cmd := range []*cobra.Command{findCmd, watchCmd} {
		cmd.Flags().StringVarP(&subjectFlag, "subject", "s", "", "Product or API to research")
		cmd.Flags().StringVarP(&parameterFlag, "parameter", "p", "", "Parameter whose default is wanted")
		cmd.Flags().StringVar(&instructionsFlag, "instructions", "", "Free-form goal replacing the default one")
		cmd.Flags().IntVarP(&budgetFlag, "budget", "b", 0, "Retry budget (default from config)")
		cmd.Flags().StringVar(&deciderFlag, "decider", "", "Decider type: openai, azure, anthropic, or prompt")
		cmd.Flags().StringVar(&searchFlag, "search", "", "Search provider: bing, brave, tavily, or duckduckgo")
		cmd.Flags().BoolVar(&searchFirstFlag, "search-first", false, "Require a web search before the model may answer")
	}
	watchCmd.Flags().StringVar(&scheduleFlag, "schedule", "0 0 * * * *", "Cron schedule, with seconds")

	rootCmd.AddCommand(findCmd, watchCmd, toolsCmd, initCmd)
}

func main() {
	ancli.SetupSlog()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { shutdown.Monitor(cancel) }()

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.err != nil {
			ancli.PrintErr(ec.err.Error() + "\n")
		}
		return ec.code
	}
	ancli.PrintErr(err.Error() + "\n")
	return exitError
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if budgetFlag > 0 {
		cfg.Agent.RetryBudget = budgetFlag
	}
	if deciderFlag != "" {
		cfg.Decider.Type = deciderFlag
	}
	if searchFlag != "" {
		cfg.Search.Provider = searchFlag
	}
	if searchFirstFlag {
		cfg.Agent.SearchFirst = true
	}
	if debugFlag {
		cfg.Debug = true
	}
	return cfg, nil
}

func goalFromFlags(args []string) (sleuth.Goal, error) {
	subject, parameter := subjectFlag, parameterFlag
	if len(args) > 0 && subject == "" {
		subject = args[0]
	}
	if len(args) > 1 && parameter == "" {
		parameter = args[1]
	}
	goal := sleuth.NewGoal(subject, parameter)
	goal.Instructions = instructionsFlag
	if !goal.Valid() {
		return sleuth.Goal{}, errors.New("a subject is required (sleuth find <subject> [parameter])")
	}
	return goal, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	if !cfg.Debug {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func runFind(ctx context.Context, args []string, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	goal, err := goalFromFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stopTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := stopTracing(context.Background()); err != nil {
			ancli.PrintWarn(fmt.Sprintf("failed to flush traces: %v\n", err))
		}
	}()

	agent, err := opts.factory()(cfg, newLogger(cfg), printEvent)
	if err != nil {
		return err
	}
	res, err := agent.Answer(ctx, goal)
	if err != nil {
		return err
	}
	return report(opts.stdout(), res)
}

// report prints the result and maps its status to an exit code.
func report(w io.Writer, res sleuth.Result) error {
	switch res.Status {
	case sleuth.StatusSuccess:
		fmt.Fprintln(w, res.Answer)
		if res.Source != "" {
			fmt.Fprintf(w, "source: %s\n", res.Source)
		}
		return nil
	case sleuth.StatusBudgetExhausted:
		return &exitCodeError{
			code: exitExhausted,
			err:  fmt.Errorf("no answer found after %d attempts", res.BudgetUsed),
		}
	default:
		return &exitCodeError{code: exitError, err: res.Cause}
	}
}

func printEvent(e sleuth.Event) {
	if e.Tool == "" {
		ancli.PrintWarn(fmt.Sprintf("answer not confirmed, %d attempts left\n", e.BudgetRemaining))
		return
	}
	msg := fmt.Sprintf("%s try #%d: %s\n", e.Tool, e.Attempt, firstLine(e.Detail))
	if e.Status == sleuth.ToolSuccess {
		ancli.PrintOK(msg)
		return
	}
	ancli.PrintWarn(msg)
}

func runTools(opts Options) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Descriptors do not depend on the providers behind the tools.
	tools := sleuth.NewToolSet(
		sleuth.NewWebSearchTool(nil, sleuth.WithSearchLimit(cfg.Agent.SearchResults)),
		sleuth.NewDocumentFetchTool(nil, cfg.Agent.FetchTimeout, nil),
	)
	enc := json.NewEncoder(opts.stdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tools.Descriptors())
}

func runInit(w io.Writer) error {
	path := configFlag
	if path == "" {
		path = config.Path()
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "Config already exists: %s\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(w, "Created config: %s\n", path)
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
