package formdesk

import (
	"io/fs"

	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/renderers/vanilla"
)

// AssetsFS exposes the stylesheet and script used by the HTML renderer so
// applications can serve them without a build step.
//
// Typical mount:
//
//	mux.Handle("/assets/",
//	  http.StripPrefix("/assets/",
//	    http.FileServerFS(formdesk.AssetsFS()),
//	  ),
//	)
func AssetsFS() fs.FS {
	return vanilla.AssetsFS()
}

// EmbeddedTemplates exposes the built-in HTML renderer templates so callers
// can reuse or extend them without importing the renderer package directly.
func EmbeddedTemplates() fs.FS {
	return vanilla.TemplatesFS()
}

// SampleDefinitions returns the bundled exercise and workout definitions
// together with their options dictionary.
func SampleDefinitions() fs.FS {
	return definition.EmbeddedFS()
}
