// Package embedded holds the static dashboard assets compiled into the
// binary so the server ships as a single file.
package embedded

import (
	"embed"
	"io/fs"
)

//go:embed static
var files embed.FS

// Static returns the dashboard filesystem rooted at the asset directory.
func Static() (fs.FS, error) {
	return fs.Sub(files, "static")
}
