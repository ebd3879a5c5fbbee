package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/model"
)

// RecordLoader fetches the stored values an editor is seeded with.
type RecordLoader interface {
	Load(ctx context.Context, form definition.Form, id string) (model.Values, error)
}

// RecordLoaderFunc adapts a function into a RecordLoader.
type RecordLoaderFunc func(ctx context.Context, form definition.Form, id string) (model.Values, error)

// Load implements RecordLoader.
func (fn RecordLoaderFunc) Load(ctx context.Context, form definition.Form, id string) (model.Values, error) {
	return fn(ctx, form, id)
}

// RequesterLoader reads records from GET /{module}/detail/{id}, the module
// being the header module or the first segment of the screen path.
func RequesterLoader(requester client.Requester) RecordLoader {
	return RecordLoaderFunc(func(ctx context.Context, form definition.Form, id string) (model.Values, error) {
		path := "/" + recordModule(form) + "/detail/" + url.PathEscape(id)
		envelope, err := requester.Get(ctx, path, nil)
		if err != nil {
			return nil, fmt.Errorf("server: load %s: %w", path, err)
		}
		if !envelope.Success {
			return nil, fmt.Errorf("server: load %s: %s", path, envelope.FailureMessage())
		}
		values := model.Values{}
		if err := envelope.Decode(&values); err != nil {
			return nil, fmt.Errorf("server: load %s: %w", path, err)
		}
		return values, nil
	})
}

func recordModule(form definition.Form) string {
	if module := strings.Trim(form.Header.Module, "/"); module != "" {
		return module
	}
	for _, segment := range strings.Split(form.Header.Path, "/") {
		if segment = strings.TrimSpace(segment); segment != "" {
			return segment
		}
	}
	return form.ID
}
