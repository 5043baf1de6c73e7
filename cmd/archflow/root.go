package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/archflow/internal/config"
	"github.com/randalmurphal/archflow/internal/logging"
	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/provider"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries what every command shares: settings loaded before the
// command runs and the hooks tests replace.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	settings config.Settings
	logger   *slog.Logger

	stdin      io.Reader
	newClients func(config.Settings, *slog.Logger) pipeline.Clients
}

func newApp() *app {
	return &app{stdin: os.Stdin, newClients: providerClients}
}

func providerClients(s config.Settings, logger *slog.Logger) pipeline.Clients {
	return provider.NewFactory(
		provider.WithMaxAttempts(s.LLMMaxAttempts),
		provider.WithCallTimeout(s.LLMTimeout),
		provider.WithLogger(logger),
	)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "archflow",
		Short: "Design software architectures with a team of LLM agents",
		Long: "archflow drafts a high-level design, reviews its security, details a\n" +
			"low-level design and has a judge approve it, refining until approved.\n" +
			"Approved designs can be turned into diagrams and a starter project.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", os.Getenv("ARCHFLOW_CONFIG"), "Config file (.yaml, .yml or .json)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	f.StringVar(&a.logFormat, "log-format", "", "Log format: text or json (default from config)")

	root.AddCommand(
		newRunCmd(a),
		newSnapshotsCmd(a),
		newExportCmd(a),
		newEstimateCmd(a),
		newKBCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(logOut io.Writer) error {
	s, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		s.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		s.LogFormat = a.logFormat
	}
	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = logging.Init(level, s.LogFormat, logOut)
	return nil
}

// providerConfig builds the provider configuration for name, falling back
// to the configured provider.
func (a *app) providerConfig(name string) provider.Config {
	s := a.settings
	cfg := provider.Config{Name: s.Provider, BaseURL: s.BaseURL, ModelOverride: s.Model}
	if name != "" && !strings.EqualFold(name, s.Provider) {
		cfg = provider.Config{Name: strings.ToLower(name)}
	}
	cfg.APIKey = s.APIKey(cfg.Name)
	return cfg
}

// readRequest returns the request text from --request or --request-file,
// where "-" reads stdin.
func (a *app) readRequest(request, file string) (string, error) {
	if request != "" && file != "" {
		return "", fmt.Errorf("--request and --request-file are mutually exclusive")
	}
	if file == "" {
		return strings.TrimSpace(request), nil
	}
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read request: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the archflow version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "archflow %s\n", version)
		},
	}
}
