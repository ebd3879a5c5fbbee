// Package template defines the template execution contract shared by HTML
// renderers. The gotemplate subpackage implements it with pongo2.
package template
