package definition

import (
	"embed"
	"io/fs"
)

//go:embed defs/*
var embeddedDefs embed.FS

// EmbeddedFS returns the bundled sample definitions and options dictionary.
// The same filesystem can be handed to LoadFS and options.LoadFS.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedDefs, "defs")
	if err != nil {
		panic(err)
	}
	return sub
}
