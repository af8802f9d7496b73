package gotify

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	device "github.com/kennedn/restate-gotify/internal/device/common"
	router "github.com/kennedn/restate-gotify/internal/router/common"

	"github.com/gorilla/schema"
)

// Request is the body, or query string, accepted by a gotify device route.
type Request struct {
	Message string  `json:"message" schema:"message"`
	Title   *string `json:"title,omitempty" schema:"title"`
	Data    *Data   `json:"data,omitempty" schema:"data"`
}

type gotify struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Service *Service `yaml:"-"`
}

type base struct {
	Devices []*gotify
}

type Device struct{}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func (d *Device) Routes(config *config.Config) ([]router.Route, error) {
	_, routes, err := routes(config)
	return routes, err
}

func routes(config *config.Config) (*base, []router.Route, error) {
	routes := []router.Route{}
	base := base{}

	for _, d := range config.Devices {
		if d.Type != "gotify" {
			continue
		}
		gotify := gotify{}

		if err := d.Decode(&gotify); err != nil {
			logging.Log(logging.Info, "Unable to decode device config: %v", err)
			continue
		}

		if gotify.Name == "" {
			logging.Log(logging.Info, "Unable to load device due to missing parameters")
			continue
		}

		service, err := New(gotify.URL, gotify.Token)
		if err != nil {
			logging.Log(logging.Error, "Unable to load device \"%s\": %v", gotify.Name, err)
			continue
		}
		gotify.Service = service

		routes = append(routes, router.Route{
			Path:    "/" + gotify.Name,
			Handler: gotify.handler,
		})

		base.Devices = append(base.Devices, &gotify)
		logging.Log(logging.Info, "Setup device \"%s\"", gotify.Name)
	}

	if len(routes) == 0 {
		logging.Log(logging.Info, "No routes found in config")
		return nil, []router.Route{}, errors.New("no routes found in config")
	} else if len(routes) == 1 {
		logging.Log(logging.Info, "Single device detected")
		return &base, routes, nil
	}

	logging.Log(logging.Info, "Multiple devices detected")
	for i, r := range routes {
		routes[i].Path = "/gotify" + r.Path
	}

	routes = append(routes, router.Route{
		Path:    "/gotify",
		Handler: base.handler,
	})

	routes = append(routes, router.Route{
		Path:    "/gotify/",
		Handler: base.handler,
	})
	return &base, routes, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (g *gotify) handler(w http.ResponseWriter, r *http.Request) {
	var jsonResponse []byte
	var httpCode int

	defer func() {
		device.JSONResponse(w, httpCode, jsonResponse)
	}()

	if r.Method != http.MethodPost {
		httpCode, jsonResponse = device.SetJSONResponse(http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return
	}

	request := Request{}

	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			httpCode, jsonResponse = device.SetJSONResponse(http.StatusBadRequest, "Malformed Or Empty JSON Body", nil)
			return
		}
	} else {
		if err := decoder.Decode(&request, r.URL.Query()); err != nil {
			httpCode, jsonResponse = device.SetJSONResponse(http.StatusBadRequest, "Malformed or empty query string", nil)
			return
		}
	}

	if request.Message == "" {
		httpCode, jsonResponse = device.SetJSONResponse(http.StatusBadRequest, "Invalid Parameter: message", nil)
		return
	}

	g.Service.Send(request.Message, Options{
		Title: request.Title,
		Data:  request.Data,
	})

	httpCode, jsonResponse = device.SetJSONResponse(http.StatusOK, "OK", nil)
}

func (b *base) getDeviceNames() []string {
	var names []string
	for _, d := range b.Devices {
		names = append(names, d.Name)
	}
	return names
}

// handler lists the configured gotify devices.
func (b *base) handler(w http.ResponseWriter, r *http.Request) {
	var jsonResponse []byte
	var httpCode int

	defer func() { device.JSONResponse(w, httpCode, jsonResponse) }()

	if r.Method == http.MethodGet {
		httpCode, jsonResponse = device.SetJSONResponse(http.StatusOK, "OK", b.getDeviceNames())
		return
	}

	httpCode, jsonResponse = device.SetJSONResponse(http.StatusMethodNotAllowed, "Method Not Allowed", nil)
}
