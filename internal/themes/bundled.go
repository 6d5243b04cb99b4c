package themes

import (
	"embed"
	"io/fs"
)

//go:embed all:bundled
var bundled embed.FS

// BundledFS returns the file system of themes shipped with the binary. Each
// top-level directory is the Origin.Path of a local theme.
func BundledFS() fs.FS {
	sub, err := fs.Sub(bundled, "bundled")
	if err != nil {
		panic(err)
	}
	return sub
}
