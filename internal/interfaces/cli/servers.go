package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"anvil.dev/cli/internal/application/services"
	"anvil.dev/cli/internal/core/domain"
)

// NewInfoCommand creates the info command
func NewInfoCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show a server's details",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			info, err := app.container.Orchestrator.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format != outputText {
				return writeStructured(app.Stdout, format, info)
			}
			printInfo(newPrinter(app.Stdout), info)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text|json|yaml)")
	return cmd
}

func printInfo(p *printer, info services.ServerInfo) {
	r := info.Record
	p.Title("%s", r.Name)
	p.Field("Type", r.ServerType)
	p.Field("Version", fmt.Sprintf("%s (build %d)", r.GameVersion, r.BuildID))
	p.Field("Port", r.Port)
	p.Field("Path", r.Path)
	p.Field("Jar", r.JarFile)
	p.Field("Created", fmt.Sprintf("%s (%s)", r.CreatedAt.Local().Format(time.DateTime), humanize.Time(r.CreatedAt)))
	if r.LastLaunch != nil {
		p.Field("Last started", fmt.Sprintf("%s (pid %d)", humanize.Time(r.LastLaunch.StartedAt), r.LastLaunch.PID))
	}

	if !info.DirectoryPresent {
		p.Warn("Server directory is missing")
	} else {
		world := "no"
		if info.Usage.HasWorld {
			world = "yes"
		}
		p.Field("Disk usage", humanize.Bytes(uint64(info.Usage.SizeBytes)))
		p.Field("World", world)
	}

	slugs := r.PluginSlugs()
	if len(slugs) == 0 {
		p.Field("Plugins", "none")
		return
	}
	entries := make([]string, len(slugs))
	for i, slug := range slugs {
		entries[i] = slug + " " + r.InstalledPlugins[slug].VersionNumber
	}
	p.Field("Plugins", strings.Join(entries, ", "))
}

// NewListCommand creates the list command
func NewListCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List known servers",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			records, err := app.container.Orchestrator.List(cmd.Context())
			if err != nil {
				return err
			}
			if format != outputText {
				return writeStructured(app.Stdout, format, records)
			}

			p := newPrinter(app.Stdout)
			if len(records) == 0 {
				p.Muted("No servers yet. Create one with: anvil create <name>")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.Name,
					string(r.ServerType),
					r.GameVersion,
					strconv.Itoa(r.BuildID),
					strconv.Itoa(r.Port),
					strconv.Itoa(len(r.InstalledPlugins)),
				})
			}
			p.Table([]string{"NAME", "TYPE", "VERSION", "BUILD", "PORT", "PLUGINS"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text|json|yaml)")
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a server and its directory",
		Long: `Delete a server: unregister it and remove its directory, including
worlds and plugins. Asks for confirmation unless --force is given.

With --force, a directory under the servers directory that has no registry
entry (left by an interrupted create) is removed as well.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, app, args[0], force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")
	return cmd
}

func runDelete(cmd *cobra.Command, app *App, name string, force bool) error {
	p := newPrinter(app.Stdout)

	if !force {
		info, err := app.container.Orchestrator.Info(cmd.Context(), name)
		if err != nil {
			return err
		}
		prompt := fmt.Sprintf("Delete %s and everything in %s?", name, info.Record.Path)
		if info.DirectoryPresent {
			prompt = fmt.Sprintf("Delete %s and %s in %s?", name, humanize.Bytes(uint64(info.Usage.SizeBytes)), info.Record.Path)
		}
		ok, err := confirm(app.Stdin, app.Stderr, prompt)
		if err != nil {
			return err
		}
		if !ok {
			p.Muted("Aborted.")
			return nil
		}
	}

	record, err := app.container.Orchestrator.DeleteServer(cmd.Context(), name)
	if force && errors.Is(err, domain.ErrServerNotFound) {
		dir, orphanErr := app.container.Orchestrator.DeleteUnregistered(cmd.Context(), name)
		if errors.Is(orphanErr, domain.ErrServerNotFound) {
			return err
		}
		if orphanErr != nil {
			return orphanErr
		}
		p.Success("Removed unregistered directory %s", dir)
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrCleanupWarning) {
		return err
	}
	p.Success("Deleted %s", record.Name)
	return err
}
