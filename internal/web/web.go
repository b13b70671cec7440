// Package web embeds the discovery view served at the site root.
package web

import (
	"embed"
	"io/fs"
)

//go:embed dist/*
var dist embed.FS

// Dist returns the view files rooted at dist/.
func Dist() (fs.FS, error) {
	return fs.Sub(dist, "dist")
}
