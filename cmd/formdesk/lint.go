package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/openapi"
)

func lintCmd() *cobra.Command {
	var (
		defsDir  string
		sources  []string
		skipDefs bool
	)
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check definitions and OpenAPI formdesk extensions",
		Long: `Lint reports duplicate field names, unknown field types, dangling
visibility dependencies and unknown option keys in the definitions. With
--openapi it also checks x-formdesk extensions in the given documents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			count := 0
			if !skipDefs {
				store, dict, err := formdesk.LoadDefinitions(definitionsFS(defsDir))
				if err != nil {
					return err
				}
				for _, issue := range definition.Lint(store, dict) {
					fmt.Fprintln(out, issue.String())
					count++
				}
			}
			for _, source := range sources {
				raw, err := openapi.Load(cmd.Context(), source, openapi.WithHTTPFallback(0))
				if err != nil {
					return err
				}
				violations, err := openapi.LintExtensions(cmd.Context(), raw)
				if err != nil {
					return fmt.Errorf("lint %s: %w", source, err)
				}
				for _, v := range violations {
					fmt.Fprintf(out, "%s: %s\n", source, v)
					count++
				}
			}
			if count > 0 {
				return fmt.Errorf("%d issue(s) found", count)
			}
			fmt.Fprintln(out, "no issues")
			return nil
		},
	}
	cmd.Flags().StringVarP(&defsDir, "definitions", "d", "", "Definitions directory (bundled samples when empty)")
	cmd.Flags().StringSliceVar(&sources, "openapi", nil, "OpenAPI documents to check, path or URL")
	cmd.Flags().BoolVar(&skipDefs, "skip-definitions", false, "Only check the OpenAPI documents")
	return cmd
}
