// Command formdesk serves, lints, imports and fills declarative admin forms
// and tables.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/internal/config"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "formdesk",
		Short:   "Declarative admin forms and tables",
		Version: version,
		Long: `formdesk interprets form and table definition documents into editor
screens and list tables, validates input, and saves through the admin
backend.`,
		Example: `  # Serve the bundled sample definitions
  $ formdesk serve

  # Check a definitions directory
  $ formdesk lint --definitions ./defs

  # Bootstrap a form from an OpenAPI operation
  $ formdesk import --source openapi.json --operation createExercise

  # Fill a form in the terminal
  $ formdesk fill exercise`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetUsageTemplate(cmd.UsageTemplate() + "\nEnvironment:\n" + config.Usage())

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(lintCmd())
	cmd.AddCommand(importCmd())
	cmd.AddCommand(fillCmd())
	return cmd
}

// definitionsFS returns the directory when set and the bundled samples
// otherwise.
func definitionsFS(dir string) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return formdesk.SampleDefinitions()
	}
	return os.DirFS(dir)
}
