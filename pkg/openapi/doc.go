// Package openapi bootstraps form definitions from an OpenAPI 3 document.
// Each operation with a request body becomes a definition.Form whose fields
// are derived from the body schema; `x-formdesk` extensions on a property
// override the inferred type, label, options key and ordering.
package openapi
