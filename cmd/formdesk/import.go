package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/openapi"
)

type importDocument struct {
	Forms map[string]definition.Form `yaml:"forms"`
}

func importCmd() *cobra.Command {
	var (
		source     string
		operations []string
		output     string
		list       bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Generate form definitions from OpenAPI request bodies",
		Long: `Import converts the request body schema of OpenAPI operations into form
definitions. Without --operation every operation with a request body is
converted. The result is a definitions document ready for serve and lint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := openapi.Load(cmd.Context(), source, openapi.WithHTTPFallback(0))
			if err != nil {
				return err
			}
			parsed, err := openapi.Parse(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if list {
				for _, id := range openapi.OperationIDs(parsed) {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			ids := operations
			if len(ids) == 0 {
				ids = openapi.OperationIDs(parsed)
			}
			doc := importDocument{Forms: make(map[string]definition.Form, len(ids))}
			for _, id := range ids {
				op, ok := parsed[id]
				if !ok {
					return fmt.Errorf("operation %q not found", id)
				}
				doc.Forms[id] = op.Form()
			}

			data, err := yaml.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode definitions: %w", err)
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d form(s) to %s\n", len(doc.Forms), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "OpenAPI document path or URL")
	cmd.Flags().StringSliceVar(&operations, "operation", nil, "Operation ids to convert (all when empty)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	cmd.Flags().BoolVar(&list, "list", false, "List the importable operation ids")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
