package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/logger"
)

const version = "v1.0.0"

// cliState holds what PersistentPreRunE resolved for the subcommands.
type cliState struct {
	cfg *config.Config
	mgr *config.Manager
	log *slog.Logger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rt := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "marketpulse",
		Short: "MarketPulse - AI market signals dashboard",
		Long: `MarketPulse simulates live quotes for a configured list of instruments
and asks a large language model for a BUY / HOLD / SELL call on the selected one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: serve the dashboard
			ctx, stop := signalContext()
			defer stop()
			return runServe(ctx, rt.cfg, rt.mgr, rt.log)
		},
	}

	// Add subcommands
	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newInteractiveCmd(rt))
	rootCmd.AddCommand(newAnalyzeCmd(rt))
	rootCmd.AddCommand(newAssetsCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")

	return rootCmd
}

// load resolves the configuration and logger from the environment and flags.
// The logger is rebuilt once a --config file has been read.
func (rt *cliState) load(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	applyLogFlags(cmd, cfg)
	rt.log = logger.Init("marketpulse", logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		mgr, err := config.NewManager(
			config.WithConfigPath(path),
			config.WithInitialConfig(cfg),
			config.WithManagerLogger(rt.log),
		)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		loaded := mgr.Get()
		cfg = &loaded
		rt.mgr = mgr
		applyLogFlags(cmd, cfg)
		rt.log = logger.Init("marketpulse", logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

// applyLogFlags lets --debug, --log-level and --log-format win over settings.
func applyLogFlags(cmd *cobra.Command, cfg *config.Config) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.LogFormat = format
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newServeCmd creates the serve command
func newServeCmd(rt *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP and WebSocket",
		Long: `Start the market feed, tick it on a fixed cadence and expose the dashboard
through a JSON API, a WebSocket stream and Prometheus metrics.
Example: marketpulse serve --addr :8080 --interval 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				rt.cfg.ListenAddr = addr
			}
			if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
				if interval < time.Second {
					return fmt.Errorf("interval must be at least 1s")
				}
				rt.cfg.TickInterval = int(interval / time.Second)
			}

			ctx, stop := signalContext()
			defer stop()
			return runServe(ctx, rt.cfg, rt.mgr, rt.log)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides listen_addr)")
	cmd.Flags().Duration("interval", 0, "Tick interval (overrides tick_interval)")

	return cmd
}

// newInteractiveCmd creates the interactive command
func newInteractiveCmd(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Browse assets and recommendations in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return runInteractiveMode(ctx, rt.cfg, rt.log)
		},
	}
}

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [SYMBOL]",
		Short: "Get a recommendation for one instrument",
		Long: `Bootstrap the market feed and ask the model once for the given symbol.
Example: marketpulse analyze XAU/INR`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return runAnalyzeCommand(ctx, rt.cfg, rt.log, args[0])
		},
	}
}

// newAssetsCmd creates the assets command
func newAssetsCmd(rt *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List the configured instruments with a fresh quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			return runAssetsCommand(rt.cfg, rt.log, filter)
		},
	}

	cmd.Flags().String("filter", "", "Case-insensitive symbol or name filter")

	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MarketPulse %s\n", version)
			fmt.Println("AI market signals over a simulated feed")
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(rt *cliState) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Inspect and validate MarketPulse configuration settings",
	}

	// config show subcommand
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(rt.cfg, rt.mgr)
		},
	})

	// config validate subcommand
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and instruments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(rt.cfg)
		},
	})

	return configCmd
}

// runAnalyzeCommand bootstraps the feed and prints one recommendation
func runAnalyzeCommand(ctx context.Context, cfg *config.Config, log *slog.Logger, symbol string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	asset, ok := a.dash.Asset(symbol)
	if !ok {
		return fmt.Errorf("unknown symbol %q", symbol)
	}

	fmt.Printf("🚀 Starting analysis for %s (%s)\n", asset.Symbol, asset.Name)
	fmt.Println(RenderAssetDetail(asset, cfg.CurrencySymbol, time.Now()))

	result, err := a.dash.Select(ctx, symbol)
	if err != nil {
		fmt.Println(RenderAnalysisError(err, cfg.CredentialEnv))
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Println(RenderRecommendation(result.Recommendation, cfg.CurrencySymbol))
	return nil
}

// runAssetsCommand bootstraps the feed and prints the asset table
func runAssetsCommand(cfg *config.Config, log *slog.Logger, filter string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	view := a.dash.View(filter)
	fmt.Print(RenderAssetTable(view.Assets, view.SelectedSymbol, cfg.CurrencySymbol))
	return nil
}

// showConfig displays the current configuration
func showConfig(cfg *config.Config, mgr *config.Manager) {
	fmt.Println("📋 Current MarketPulse Configuration:")
	fmt.Println("═══════════════════════════════════════")
	if mgr != nil {
		fmt.Printf("Config File:          %s\n", mgr.Path())
	}
	fmt.Printf("Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Printf("Instruments File:     %s\n", displayOr(cfg.ResolvedInstrumentsFile(), "(built-in list)"))
	fmt.Printf("History Points:       %d\n", cfg.HistoryPoints)
	fmt.Printf("Tick Interval:        %s\n", cfg.TickIntervalDuration())
	fmt.Printf("Seed:                 %d\n", cfg.Seed)
	fmt.Println()
	fmt.Printf("LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Printf("Model:                %s\n", cfg.Model)
	fmt.Printf("Backend URL:          %s\n", displayOr(cfg.BackendURL, "(provider default)"))
	fmt.Printf("Temperature:          %.2f\n", cfg.Temperature)
	fmt.Printf("Max Tokens:           %d\n", cfg.MaxTokens)
	fmt.Printf("Analysis Timeout:     %s\n", cfg.AnalysisTimeoutDuration())
	fmt.Println()
	fmt.Printf("Market:               %s (%s %s)\n", cfg.MarketRegion, cfg.CurrencyCode, cfg.CurrencySymbol)
	fmt.Printf("Listen Address:       %s\n", cfg.ListenAddr)
	fmt.Printf("Log Level:            %s\n", cfg.LogLevel)
	fmt.Printf("Debug Mode:           %t\n", cfg.Debug)
	fmt.Printf("Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Printf("Eino Debug Port:      %d\n", cfg.EinoDebugPort)
		fmt.Printf("Debug URL:            http://localhost:%d\n", cfg.EinoDebugPort)
	}
	fmt.Println()

	fmt.Println("🔌 API Configuration:")
	fmt.Println("─────────────────────")
	if _, ok := cfg.Credential().CurrentCredential(); ok {
		fmt.Printf("%-22s✅ Configured\n", cfg.CredentialEnv+":")
	} else {
		fmt.Printf("%-22s❌ Not configured\n", cfg.CredentialEnv+":")
	}
}

// validateConfig validates the configuration and instruments
func validateConfig(cfg *config.Config) error {
	fmt.Println("🔍 Validating MarketPulse Configuration...")
	fmt.Println("═══════════════════════════════════════")

	fmt.Print("⚙️  Checking configuration values... ")
	if err := cfg.Validate(); err != nil {
		fmt.Println("❌")
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	fmt.Println("✅")

	fmt.Print("📊 Checking instruments... ")
	instruments, err := config.LoadInstruments(cfg.ResolvedInstrumentsFile())
	if err != nil {
		fmt.Println("❌")
		return fmt.Errorf("instrument validation failed: %w", err)
	}
	fmt.Printf("✅ (%d)\n", len(instruments))

	fmt.Print("🔑 Checking API key... ")
	warnings := 0
	if _, ok := cfg.Credential().CurrentCredential(); ok {
		fmt.Println("✅")
	} else {
		warnings++
		fmt.Println("⚠️")
		fmt.Printf("  ⚠️  %s is not set; analysis requests will fail until it is\n", cfg.CredentialEnv)
	}

	fmt.Println()
	if warnings == 0 {
		fmt.Println("✅ Configuration validation completed successfully!")
	} else {
		fmt.Printf("⚠️  Configuration validation completed with %d warnings.\n", warnings)
	}

	fmt.Println()
	fmt.Println("💡 Tips:")
	fmt.Printf("  • Set %s in the environment or a .env file\n", cfg.CredentialEnv)
	fmt.Println("  • Use 'marketpulse analyze XAU/INR' for a one-off recommendation")
	fmt.Println("  • Use 'marketpulse serve' to start the dashboard")

	return nil
}

func displayOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
