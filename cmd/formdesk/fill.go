package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/internal/config"
	"github.com/goliatone/go-formdesk/internal/logging"
	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/renderers/tui"
	"github.com/goliatone/go-formdesk/pkg/upload"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

const maxFillAttempts = 3

func fillCmd() *cobra.Command {
	var (
		configPath string
		defsDir    string
		recordPath string
		format     string
		submit     bool
		draft      bool
	)
	cmd := &cobra.Command{
		Use:   "fill <form>",
		Short: "Fill a form with terminal prompts",
		Long: `Fill walks the form fields with interactive prompts, checking every answer
against the field rules. The answers are printed, or saved through the
backend with --submit, re-prompting when the save is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, dict, err := formdesk.LoadDefinitions(definitionsFS(defsDir))
			if err != nil {
				return err
			}
			def, ok := store.Form(args[0])
			if !ok {
				return fmt.Errorf("form %q not found (available: %v)", args[0], store.FormIDs())
			}
			seed, err := readRecord(recordPath)
			if err != nil {
				return err
			}

			opts := []formdesk.Option{formdesk.WithOptions(dict)}
			var uploader client.Uploader
			if submit {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if cfg.Backend.BaseURL == "" {
					return fmt.Errorf("--submit needs a backend base URL (FORMDESK_BACKEND_URL)")
				}
				logger, err := logging.New(cfg.Log.Level, logging.FormatConsole)
				if err != nil {
					return err
				}
				backend, err := client.New(cfg.Backend.BaseURL,
					client.WithToken(cfg.Backend.Token),
					client.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
					client.WithLogger(logger.Named("client")),
				)
				if err != nil {
					return err
				}
				uploader = backend
				if cfg.Upload.Bucket != "" {
					s3, err := upload.New(cfg.Upload, upload.WithLogger(logger.Named("upload")))
					if err != nil {
						return err
					}
					uploader = s3
				}
				opts = append(opts, formdesk.WithRequester(backend), formdesk.WithUploader(uploader), formdesk.WithLogger(logger))
			}

			editor, err := formdesk.NewEditor(def, seed, opts...)
			if err != nil {
				return err
			}
			rendererOptions := []tui.Option{
				tui.WithPromptDriver(tui.NewSurveyDriver(cmd.ErrOrStderr())),
				tui.WithInfoWriter(cmd.ErrOrStderr()),
				tui.WithCheck(editor.Check),
				tui.WithOutputFormat(tui.OutputFormat(format)),
			}
			if uploader != nil {
				rendererOptions = append(rendererOptions, tui.WithUpload(editor.Upload))
			}
			renderer := tui.New(rendererOptions...)

			if !submit {
				out, err := editor.Render(ctx, renderer, formdesk.RenderOptions{})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			}

			status := ""
			if draft {
				status = model.StatusDraft
			}
			var feedback formdesk.RenderOptions
			for attempt := 1; ; attempt++ {
				view, err := editor.View()
				if err != nil {
					return err
				}
				values, err := renderer.Fill(ctx, view, feedback)
				if err != nil {
					return err
				}
				result, err := editor.Submit(ctx, values, status)
				if err == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "saved to %s\n", result.Endpoint)
					return json.NewEncoder(cmd.OutOrStdout()).Encode(result.Data)
				}
				_, isNotice := validation.AsNotification(err)
				_, isSave := validation.AsSaveError(err)
				retry := validation.IsFieldErrors(err) || isNotice || isSave
				if !retry || attempt >= maxFillAttempts {
					return err
				}
				feedback = editor.Feedback(err)
			}
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVarP(&defsDir, "definitions", "d", "", "Definitions directory (bundled samples when empty)")
	cmd.Flags().StringVar(&recordPath, "record", "", "JSON file with the record to edit")
	cmd.Flags().StringVarP(&format, "format", "f", string(tui.OutputFormatJSON), "Output format: json, form or pretty")
	cmd.Flags().BoolVar(&submit, "submit", false, "Save the answers through the backend")
	cmd.Flags().BoolVar(&draft, "draft", false, "Save as a draft")
	return cmd
}

func readRecord(path string) (model.Values, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	values := model.Values{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", path, err)
	}
	return values, nil
}
