package common

import "net/http"

// Route binds a path to the handler serving it.
type Route struct {
	Path    string
	Handler http.HandlerFunc
}
