// Package frigate listens for Frigate NVR review events over MQTT and raises
// gotify notifications for new alerts.
package frigate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	"github.com/kennedn/restate-gotify/internal/device/gotify"
	common "github.com/kennedn/restate-gotify/internal/mqtt/common"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const reviewTopic = "frigate/reviews"

// review is the payload published on the frigate/reviews topic.
type review struct {
	Type   string `json:"type"`
	Before detail `json:"before"`
	After  detail `json:"after"`
}

type detail struct {
	ID        string   `json:"id"`
	Camera    string   `json:"camera"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time,omitempty"`
	Severity  string   `json:"severity"`
	ThumbPath string   `json:"thumb_path"`
	Data      struct {
		Detections []string `json:"detections"`
		Objects    []string `json:"objects"`
		SubLabels  []string `json:"sub_labels"`
		Zones      []string `json:"zones"`
		Audio      []string `json:"audio"`
	} `json:"data"`
}

type listener struct {
	Config *listenerConfig
	Gotify *gotify.Service
}

type listenerConfig struct {
	Name    string      `yaml:"name"`
	Client  mqtt.Client `yaml:"-"`
	Timeout uint        `yaml:"timeoutMs"`
	MQTT    struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"mqtt"`
	Gotify struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		Priority int    `yaml:"priority"`
	} `yaml:"gotify"`
	Frigate struct {
		URL         string `yaml:"url"`
		ExternalUrl string `yaml:"externalUrl"`
	} `yaml:"frigate"`
}

type base struct {
	Listeners []*listener
}

type Device struct{}

// clientFactory returns the MQTT client a listener subscribes with.
type clientFactory func(*listenerConfig) (mqtt.Client, error)

// connect opens a dedicated broker connection for a single listener.
func connect(c *listenerConfig) (mqtt.Client, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.MQTT.Host, c.MQTT.Port))
	clientOpts.SetClientID("restate-gotify-" + c.Name)
	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if err := mqtt.WaitTokenTimeout(token, time.Duration(c.Timeout)*time.Millisecond); err != nil {
		return nil, err
	}
	return client, nil
}

func cleanString(str string) string {
	strArr := []string{}
	for _, word := range strings.Split(str, "_") {
		strArr = append(strArr, cases.Title(language.English).String(word))
	}
	return strings.Join(strArr, " ")
}

func joinStringSlice(str []string) string {
	strArr := []string{}
	for _, s := range str {
		strArr = append(strArr, cleanString(s))
	}
	return strings.Join(strArr, " and ")
}

// Listeners creates an MQTT listener for every frigate device in config.
func (d *Device) Listeners(config *config.Config) ([]common.Listener, error) {
	_, listeners, err := listeners(config, connect)
	out := []common.Listener{}
	for _, l := range listeners {
		out = append(out, l)
	}
	return out, err
}

func listeners(config *config.Config, newClient clientFactory) (*base, []*listener, error) {
	listeners := []*listener{}
	base := base{}
	for _, d := range config.Devices {
		if d.Type != "frigate" {
			continue
		}
		listenerConfig := listenerConfig{}

		if err := d.Decode(&listenerConfig); err != nil {
			logging.Log(logging.Info, "Unable to decode device config: %v", err)
			continue
		}

		if listenerConfig.Name == "" || listenerConfig.Timeout == 0 || listenerConfig.MQTT.Host == "" || listenerConfig.Frigate.URL == "" {
			logging.Log(logging.Info, "Unable to load device due to missing parameters")
			continue
		}

		service, err := gotify.New(listenerConfig.Gotify.URL, listenerConfig.Gotify.Token)
		if err != nil {
			logging.Log(logging.Error, "Unable to load device \"%s\": %v", listenerConfig.Name, err)
			continue
		}

		if listenerConfig.MQTT.Port == 0 {
			listenerConfig.MQTT.Port = 1883
		}

		if listenerConfig.Gotify.Priority == 0 {
			listenerConfig.Gotify.Priority = gotify.DefaultPriority
		}

		if listenerConfig.Frigate.ExternalUrl == "" {
			listenerConfig.Frigate.ExternalUrl = listenerConfig.Frigate.URL
		}
		listenerConfig.Frigate.ExternalUrl = strings.TrimSuffix(listenerConfig.Frigate.ExternalUrl, "/")

		client, err := newClient(&listenerConfig)
		if err != nil {
			logging.Log(logging.Error, "Unable to connect to MQTT broker for device \"%s\": %v", listenerConfig.Name, err)
			continue
		}
		listenerConfig.Client = client

		l := &listener{
			Config: &listenerConfig,
			Gotify: service,
		}
		base.Listeners = append(base.Listeners, l)
		listeners = append(listeners, l)

		logging.Log(logging.Info, "Setup device \"%s\"", l.Config.Name)
	}

	if len(listeners) == 0 {
		return nil, []*listener{}, errors.New("no listeners found in config")
	}

	return &base, listeners, nil
}

// isAlert reports whether a review has just become an alert.
func isAlert(r *review) bool {
	return (r.Type == "new" && r.After.Severity == "alert") ||
		(r.Type == "update" && r.Before.Severity == "detection" && r.After.Severity == "alert")
}

// Listen subscribes to frigate reviews and sends a notification for each new alert.
func (l *listener) Listen() {
	if l.Config.Client == nil {
		logging.Log(logging.Error, "MQTT client is not initialized")
		return
	}

	token := l.Config.Client.Subscribe(reviewTopic, 0, func(client mqtt.Client, message mqtt.Message) {
		l.handleMessage(message.Payload())
	})
	if token == nil {
		return
	}
	if err := mqtt.WaitTokenTimeout(token, time.Duration(l.Config.Timeout)*time.Millisecond); err != nil {
		logging.Log(logging.Error, "Failed to subscribe to MQTT topic: %v", err)
	}
}

func (l *listener) handleMessage(payload []byte) {
	review := review{}
	if err := json.Unmarshal(payload, &review); err != nil {
		logging.Log(logging.Error, "Failed to unmarshal MQTT message: %v", err)
		return
	}

	if !isAlert(&review) {
		return
	}

	message, opts := l.createNotification(&review)
	l.Gotify.Send(message, opts)
}

// createNotification builds the gotify message and options for a review.
func (l *listener) createNotification(review *review) (string, gotify.Options) {
	message := fmt.Sprintf("%s detected at %s", joinStringSlice(review.After.Data.Objects), joinStringSlice(review.After.Data.Zones))
	title := "Frigate"

	data := &gotify.Data{
		Priority: json.Number(fmt.Sprintf("%d", l.Config.Gotify.Priority)),
	}

	clickURL := l.Config.Frigate.ExternalUrl
	if review.After.ID != "" {
		clickURL = fmt.Sprintf("%s/review?id=%s", l.Config.Frigate.ExternalUrl, review.After.ID)
	}
	data.ClickURL = &clickURL

	// Event IDs are prefixed with their start timestamp, the greatest is the latest
	eventIds := append([]string{}, review.After.Data.Detections...)
	if len(eventIds) > 0 {
		sort.Sort(sort.Reverse(sort.StringSlice(eventIds)))
		image := fmt.Sprintf("%s/api/events/%s/thumbnail.jpg", l.Config.Frigate.ExternalUrl, eventIds[0])
		data.Image = &image
	}

	return message, gotify.Options{
		Title: &title,
		Data:  data,
	}
}
