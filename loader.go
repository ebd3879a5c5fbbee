package formdesk

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/openapi"
	"github.com/goliatone/go-formdesk/pkg/options"
)

// LoadDefinitions reads the form and table definitions and the options
// dictionary from the same filesystem.
func LoadDefinitions(fsys fs.FS) (*definition.Store, *options.Dictionary, error) {
	store, err := definition.LoadFS(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("formdesk: load definitions: %w", err)
	}
	dict, err := options.LoadFS(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("formdesk: load options: %w", err)
	}
	return store, dict, nil
}

// ImportOperation loads an OpenAPI document from location and converts the
// request body of operationID into a form definition.
func ImportOperation(ctx context.Context, location, operationID string, loaderOptions []openapi.LoaderOption, parseOptions ...openapi.Option) (definition.Form, error) {
	raw, err := openapi.Load(ctx, location, loaderOptions...)
	if err != nil {
		return definition.Form{}, err
	}
	return openapi.Import(ctx, raw, operationID, parseOptions...)
}
