package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command
func NewVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        exactArgs(0),
		Annotations: map[string]string{skipContainer: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(app.Stdout, "anvil version %s\n", Version)
			fmt.Fprintf(app.Stdout, "Build time: %s\n", BuildTime)
			fmt.Fprintf(app.Stdout, "Go version: %s\n", goVersion())
			fmt.Fprintf(app.Stdout, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
