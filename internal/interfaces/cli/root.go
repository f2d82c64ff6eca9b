package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"anvil.dev/cli/internal/config"
	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/infrastructure/logging"
	"anvil.dev/cli/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// skipContainer marks commands that run without configuration.
const skipContainer = "anvil/skip-container"

// App holds the streams and environment commands run against, and the
// container built once flags are parsed.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Environment replaces the process environment when non-nil
	Environment map[string]string

	container *di.Container
}

// NewApp returns an App bound to the process streams.
func NewApp() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// NewRootCommand RootCommand represents the base command when called without any subcommands
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anvil",
		Short: "anvil - provision and run Minecraft servers",
		Long: `anvil creates Minecraft servers from the Paper and Vanilla distributions,
installs Modrinth plugins with their dependencies, and starts them.

Server jars and plugins are verified against published checksums before
they are written. Known servers are tracked in a registry under the data
directory (default ~/.anvil).`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipContainer] != "" {
				return nil
			}
			return app.initialize(cmd)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.PersistentFlags().String("config", "", "Config file path (default is $ANVIL_CONFIG or <user config dir>/anvil/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the registry and servers (default ~/.anvil)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewCreateCommand(app))
	rootCmd.AddCommand(NewPluginCommand(app))
	rootCmd.AddCommand(NewStartCommand(app))
	rootCmd.AddCommand(NewInfoCommand(app))
	rootCmd.AddCommand(NewListCommand(app))
	rootCmd.AddCommand(NewDeleteCommand(app))
	rootCmd.AddCommand(NewVersionCommand(app))

	return rootCmd
}

// initialize loads configuration with the global flags applied and builds
// the container.
func (a *App) initialize(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	debugFlag, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath:  configPath,
		DataDir:     dataDir,
		Debug:       debugFlag,
		Environment: a.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := logging.New(logging.Options{Level: level, Output: a.Stderr}).
		With("command", cmd.CommandPath())

	opts := di.Options{Logger: logger}
	if logging.IsTerminal(a.Stderr) {
		opts.Progress = newProgressReporter(a.Stderr)
	}

	a.container, err = di.NewContainer(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return nil
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(app.Stdin)
	rootCmd.SetOut(app.Stdout)
	rootCmd.SetErr(app.Stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, domain.ErrCleanupWarning) {
		fmt.Fprintf(app.Stderr, "Warning: %v\n", err)
		return ExitOK
	}
	fmt.Fprintf(app.Stderr, "Error: %v\n", err)
	if ExitCode(err) == ExitUsage {
		fmt.Fprintf(app.Stderr, "Run '%s --help' for usage.\n", commandPath(rootCmd, args))
	}
	return ExitCode(err)
}

func commandPath(root *cobra.Command, args []string) string {
	cmd, _, err := root.Find(args)
	if err != nil || cmd == nil {
		return root.Name()
	}
	return cmd.CommandPath()
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}
