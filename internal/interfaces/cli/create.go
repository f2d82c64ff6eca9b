package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"anvil.dev/cli/internal/application/services"
	"anvil.dev/cli/internal/core/domain"
)

// NewCreateCommand creates the create command
func NewCreateCommand(app *App) *cobra.Command {
	var (
		serverType string
		version    string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new server",
		Long: `Create a server directory, download the server jar for the requested
version and register the server.

The newest published build of the version is used. "latest" picks the
newest release that has a build.`,
		Example: `  # Latest Paper release
  anvil create survival

  # Pinned Vanilla version on another port
  anvil create creative --type vanilla --version 1.20.1 --port 25566`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseServerType(serverType)
			if err != nil {
				return newUsageError("invalid --type %q (must be %s)", serverType, serverTypeNames())
			}
			return runCreate(cmd, app, services.CreateRequest{
				Name:        args[0],
				ServerType:  st,
				VersionSpec: version,
				Port:        port,
			})
		},
	}

	cmd.Flags().StringVarP(&serverType, "type", "t", string(domain.ServerTypePaper), "Server distribution ("+serverTypeNames()+")")
	cmd.Flags().StringVarP(&version, "version", "v", "latest", `Game version, or "latest"`)
	cmd.Flags().IntVarP(&port, "port", "p", 25565, "Server port")

	return cmd
}

func runCreate(cmd *cobra.Command, app *App, req services.CreateRequest) error {
	record, err := app.container.Orchestrator.CreateServer(cmd.Context(), req)
	if err != nil {
		return err
	}

	p := newPrinter(app.Stdout)
	p.Success("Created %s %s server %s (build %d)", record.ServerType, record.GameVersion, record.Name, record.BuildID)
	p.Field("Path", record.Path)
	p.Field("Port", record.Port)
	p.Muted("Start it with: anvil start %s", record.Name)
	return nil
}

func serverTypeNames() string {
	names := make([]string, len(domain.ServerTypes))
	for i, st := range domain.ServerTypes {
		names[i] = string(st)
	}
	return strings.Join(names, "|")
}
