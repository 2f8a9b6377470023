// Package web serves the viewer's settings panel: the viewer state as JSON, rendered frames,
// camera input, and a websocket pushing every state change to connected panels.
package web

import "embed"

// AppFS holds the panel page.
//
//go:embed static
var AppFS embed.FS
