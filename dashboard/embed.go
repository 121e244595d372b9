// Package dashboard holds the embedded web UI served at "/".
//
// The page reads /api/status once and then follows /api/sse. The server
// replaces the {{.Title}} placeholder before serving it.
package dashboard

import "embed"

// Assets contains assets/index.html, a single page with inline CSS and
// JavaScript.
//
//go:embed assets/*
var Assets embed.FS
