package device

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	common "github.com/kennedn/restate-gotify/internal/device/common"
	"github.com/kennedn/restate-gotify/internal/device/gotify"
	router "github.com/kennedn/restate-gotify/internal/router/common"
)

type Device interface {
	Routes(config *config.Config) ([]router.Route, error)
}

type Devices struct {
	routes []router.Route
}

var (
	devices = []Device{
		&gotify.Device{},
	}
)

// Routes collects the routes of every configured device, prefixed with the API version.
func (d *Devices) Routes(deviceConfig *config.Config) ([]router.Route, error) {
	for _, device := range devices {
		tmpRoutes, _ := device.Routes(deviceConfig)

		for i, r := range tmpRoutes {
			tmpRoutes[i].Path = "/" + deviceConfig.ApiVersion + r.Path
		}

		d.routes = append(d.routes, tmpRoutes...)
	}

	if len(d.routes) == 0 {
		logging.Log(logging.Error, "No routes returned from parsed config")
		return []router.Route{}, errors.New("no routes returned from parsed config")
	}

	d.routes = append(d.routes, router.Route{
		Path:    "/" + deviceConfig.ApiVersion,
		Handler: d.handler,
	})

	d.routes = append(d.routes, router.Route{
		Path:    "/" + deviceConfig.ApiVersion + "/",
		Handler: d.handler,
	})

	return d.routes, nil
}

// Use the number of '/' characters present in the route Paths to extract top level path names
func (d *Devices) getTopLevelRouteNames() []string {
	topLevelNames := []string{}
	seen := map[string]bool{}
	for _, r := range d.routes {
		parts := strings.Split(r.Path, "/")

		if len(parts) >= 3 && parts[2] != "" && !seen[parts[2]] {
			seen[parts[2]] = true
			topLevelNames = append(topLevelNames, parts[2])
		}
	}
	return topLevelNames
}

func (d *Devices) handler(w http.ResponseWriter, r *http.Request) {
	var jsonResponse []byte
	var httpCode int

	defer func() {
		common.JSONResponse(w, httpCode, jsonResponse)
	}()

	if r.Method != http.MethodGet {
		httpCode, jsonResponse = common.SetJSONResponse(http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return
	}

	httpCode, jsonResponse = common.SetJSONResponse(http.StatusOK, "OK", d.getTopLevelRouteNames())
}
