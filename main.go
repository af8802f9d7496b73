package main

import (
	"net/http"
	"os"

	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	"github.com/kennedn/restate-gotify/internal/mqtt"
	"github.com/kennedn/restate-gotify/internal/router"
)

func main() {
	server, err := config.LoadServer()
	if err != nil {
		logging.Log(logging.Error, "Could not load settings: %v", err)
		os.Exit(1)
	}
	logging.SetLogLevel(server.LogLevel)

	deviceConfig, err := config.Load(server.ConfigPath)
	if err != nil {
		logging.Log(logging.Error, "Could not load config (RESTATECONFIG=%s): %v", server.ConfigPath, err)
		os.Exit(1)
	}

	r, err := router.NewRouter(deviceConfig)
	if err != nil {
		logging.Log(logging.Error, "Could not create router: %v", err)
		os.Exit(1)
	}

	listeners, _ := mqtt.Listeners(deviceConfig)
	for _, l := range listeners {
		l.Listen()
	}

	logging.Log(logging.Info, "Server listening on %s", server.Listen)
	if err := http.ListenAndServe(server.Listen, r); err != nil {
		logging.Log(logging.Error, "Server stopped: %v", err)
		os.Exit(1)
	}
}
