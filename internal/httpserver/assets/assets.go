// Package assets holds the static files of the control page.
package assets

import _ "embed"

var (
	//go:embed index.html
	IndexHTML []byte

	//go:embed index.css
	IndexCSS []byte

	//go:embed index.js
	IndexJS []byte
)
