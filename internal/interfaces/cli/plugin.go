package cli

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"anvil.dev/cli/internal/application/services"
	"anvil.dev/cli/internal/core/domain"
)

// NewPluginCommand creates the plugin command group
func NewPluginCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage server plugins",
		Long: `Install, remove, list and search Modrinth plugins.

Installing a plugin also installs its required dependencies. Every plugin
is checked against the server's game version and loader before anything
is downloaded.`,
		Example: `  # Install a plugin and its dependencies
  anvil plugin add luckperms --server survival

  # Pin a version range
  anvil plugin add worldedit --server survival --version ">=7.2, <7.3"

  # Remove a plugin
  anvil plugin remove luckperms --server survival`,
	}

	cmd.AddCommand(newPluginAddCommand(app))
	cmd.AddCommand(newPluginRemoveCommand(app))
	cmd.AddCommand(newPluginListCommand(app))
	cmd.AddCommand(newPluginSearchCommand(app))

	return cmd
}

func newPluginAddCommand(app *App) *cobra.Command {
	var server, version string
	cmd := &cobra.Command{
		Use:     "add <slug>",
		Aliases: []string{"install"},
		Short:   "Install a plugin and its required dependencies",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.container.Orchestrator.InstallPlugin(cmd.Context(), server, args[0],
				services.InstallOptions{Version: version})
			if err != nil {
				return err
			}

			p := newPrinter(app.Stdout)
			for _, d := range result.Installed {
				p.Success("Installed %s %s", d.Slug, d.VersionNumber)
			}
			if len(result.Skipped) > 0 {
				p.Muted("Already present: %s", strings.Join(result.Skipped, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "Server to install into")
	cmd.Flags().StringVar(&version, "version", "", `Version constraint, e.g. "5.4.102" or ">=5, <6"`)
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func newPluginRemoveCommand(app *App) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:     "remove <slug>",
		Aliases: []string{"rm", "uninstall"},
		Short:   "Remove an installed plugin",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.container.Orchestrator.RemovePlugin(cmd.Context(), server, args[0]); err != nil {
				return err
			}
			newPrinter(app.Stdout).Success("Removed %s from %s", args[0], server)
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "Server to remove from")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func newPluginListCommand(app *App) *cobra.Command {
	var server, output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed plugins",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			plugins, err := app.container.Orchestrator.ListPlugins(cmd.Context(), server)
			if err != nil {
				return err
			}
			if format != outputText {
				return writeStructured(app.Stdout, format, plugins)
			}

			p := newPrinter(app.Stdout)
			if len(plugins) == 0 {
				p.Muted("No plugins installed on %s.", server)
				return nil
			}
			rows := make([][]string, 0, len(plugins))
			for _, d := range plugins {
				rows = append(rows, []string{d.Slug, d.VersionNumber, d.FileName, requiredBy(d, plugins)})
			}
			p.Table([]string{"SLUG", "VERSION", "FILE", "REQUIRED BY"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "Server to list")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text|json|yaml)")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

// requiredBy names the installed plugins that depend on d.
func requiredBy(d domain.PluginDescriptor, installed []domain.PluginDescriptor) string {
	var dependents []string
	for _, other := range installed {
		for _, dep := range other.Dependencies {
			if dep.Required && (dep.Slug == d.Slug || dep.Slug == d.ProjectID) {
				dependents = append(dependents, other.Slug)
				break
			}
		}
	}
	if len(dependents) == 0 {
		return "-"
	}
	return strings.Join(dependents, ",")
}

func newPluginSearchCommand(app *App) *cobra.Command {
	var limit int
	var output string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the plugin catalog",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			hits, err := app.container.Orchestrator.SearchPlugins(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if format != outputText {
				return writeStructured(app.Stdout, format, hits)
			}

			p := newPrinter(app.Stdout)
			if len(hits) == 0 {
				p.Muted("No plugins found.")
				return nil
			}
			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{h.Slug, h.Title, humanize.Comma(int64(h.Downloads)), truncate(h.Description, 60)})
			}
			p.Table([]string{"SLUG", "TITLE", "DOWNLOADS", "DESCRIPTION"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text|json|yaml)")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
