package router

import (
	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	"github.com/kennedn/restate-gotify/internal/device"

	"github.com/gorilla/mux"
)

// NewRouter serves the routes of every device in config behind the request logger.
func NewRouter(config *config.Config) (*mux.Router, error) {
	devices := device.Devices{}
	routes, err := devices.Routes(config)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	for _, route := range routes {
		r.HandleFunc(route.Path, route.Handler)
	}
	r.Use(logging.RequestLogger)

	return r, nil
}
