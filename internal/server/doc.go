// Package server provides the HTTP server for the rmwatch dashboard and API.
//
// Routes:
//
//   - GET /: embedded dashboard HTML
//   - GET /api/status: current snapshot as JSON
//   - GET /api/sse: snapshot stream as Server-Sent Events
//   - GET /api/breadcrumbs: breadcrumb trails per page
//   - GET /api/pages: page controller state
//   - GET /api/history: recent discovery cycles (when history is enabled)
//   - GET /api/helper: raw helper answer, looked up out of cycle
//   - POST /api/refresh: run a discovery cycle now
//   - GET /helper: the helper endpoint itself (when enabled)
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
