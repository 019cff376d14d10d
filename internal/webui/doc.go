// Package webui serves the dashboard's static front end.
//
// A placeholder page is embedded with go:embed so the binary always answers
// on "/". Pointing Handler at a directory serves a real build from disk
// instead. Unknown paths fall back to index.html so client-side routing
// works.
package webui
