package cli

import (
	"github.com/spf13/cobra"

	"anvil.dev/cli/internal/application/services"
)

// NewStartCommand creates the start command
func NewStartCommand(app *App) *cobra.Command {
	var (
		memoryGB int
		detach   bool
	)

	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start a server",
		Long: `Start a server with the configured Java runtime.

In the foreground the server console is attached to this terminal and the
command returns when the server stops. With --detach the server runs in its
own session and the command returns once it has started.`,
		Example: `  anvil start survival --ram 4
  anvil start survival --detach`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("ram") && memoryGB < 1 {
				return newUsageError("--ram must be at least 1")
			}
			return runStart(cmd, app, args[0], services.StartOptions{MemoryGB: memoryGB, Detach: detach})
		},
	}

	cmd.Flags().IntVarP(&memoryGB, "ram", "r", 0, "Heap size in GB (default from configuration)")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Run in the background")

	return cmd
}

func runStart(cmd *cobra.Command, app *App, name string, opts services.StartOptions) error {
	p := newPrinter(app.Stderr)
	if !opts.Detach {
		opts.Stdio = services.Stdio{In: app.Stdin, Out: app.Stdout, Err: app.Stderr}
	}

	proc, err := app.container.Orchestrator.Start(cmd.Context(), name, opts)
	if err != nil {
		return err
	}

	if opts.Detach {
		newPrinter(app.Stdout).Success("Started %s in the background (pid %d)", name, proc.PID())
		return nil
	}

	p.Muted("Started %s (pid %d); stop it with the server's stop command.", name, proc.PID())
	if err := proc.Wait(); err != nil {
		return err
	}
	p.Muted("%s stopped.", name)
	return nil
}
