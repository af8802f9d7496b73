package frigate

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	"github.com/kennedn/restate-gotify/internal/device/gotify"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	mockMqtt "github.com/kennedn/restate-gotify/internal/mqtt/frigate/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newAlert = `{"type":"new","before":{"camera":"front_garden","data":{"audio":[],"detections":["1723938588.335444-ctmuov","1723938590.100000-latest"],"objects":["person"],"sub_labels":[],"zones":["front_enterance"]},"end_time":1723938593.734983,"id":"1723938590.336533-y0wa6z","severity":"alert","start_time":1723938590.336533,"thumb_path":"/media/frigate/clips/review/thumb-front_garden-1723938590.336533-y0wa6z.webp"},"after":{"camera":"front_garden","data":{"audio":[],"detections":["1723938588.335444-ctmuov","1723938590.100000-latest"],"objects":["person","delivery_van"],"sub_labels":[],"zones":["front_enterance"]},"end_time":1723938593.734983,"id":"1723938590.336533-y0wa6z","severity":"alert","start_time":1723938590.336533,"thumb_path":"/media/frigate/clips/review/thumb-front_garden-1723938590.336533-y0wa6z.webp"}}`

const escalatedAlert = `{"type":"update","before":{"id":"r1","severity":"detection","data":{"detections":["1.0-a"],"objects":["car"],"zones":["driveway"]}},"after":{"id":"r1","severity":"alert","data":{"detections":["1.0-a"],"objects":["car"],"zones":["driveway"]}}}`

const endedAlert = `{"type":"end","before":{"id":"r1","severity":"alert","data":{"detections":["1.0-a"],"objects":["car"],"zones":["driveway"]}},"after":{"id":"r1","severity":"alert","data":{"detections":["1.0-a"],"objects":["car"],"zones":["driveway"]}}}`

const newDetection = `{"type":"new","before":{"id":"r2","severity":"detection"},"after":{"id":"r2","severity":"detection","data":{"detections":["1.0-a"],"objects":["cat"],"zones":["garden"]}}}`

func loadConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Could not read config file: %v", err)
	}
	return c
}

// mockClients returns a factory handing each listener a fresh mock client,
// recording every client it creates in created.
func mockClients(created *[]*mockMqtt.Client) clientFactory {
	return func(*listenerConfig) (mqtt.Client, error) {
		c := &mockMqtt.Client{}
		if created != nil {
			*created = append(*created, c)
		}
		return c, nil
	}
}

func mockClient(c *mockMqtt.Client) clientFactory {
	return func(*listenerConfig) (mqtt.Client, error) {
		return c, nil
	}
}

func TestListeners(t *testing.T) {
	logging.SetLogLevel(logging.Error)

	testCases := []struct {
		name          string
		configPath    string
		listenerCount int
		expectError   bool
	}{
		{name: "default_config", configPath: "testdata/normal_config.yaml", listenerCount: 2},
		{name: "empty_yaml_config", configPath: "testdata/empty_yaml_config.yaml", expectError: true},
		{name: "missing_config", configPath: "testdata/missing_config.yaml", expectError: true},
		{name: "missing_config_parameter", configPath: "testdata/missing_config_parameter.yaml", expectError: true},
		{name: "missing_gotify_token", configPath: "testdata/missing_token_config.yaml", expectError: true},
		{name: "no_device_in_config", configPath: "testdata/no_device_config.yaml", expectError: true},
		{name: "single_device_config", configPath: "testdata/single_device_config.yaml", listenerCount: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, l, err := listeners(loadConfig(t, tc.configPath), mockClients(nil))

			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if len(l) != tc.listenerCount {
				t.Fatalf("Wrong number of listeners returned, Expected: %d, Got: %d", tc.listenerCount, len(l))
			}
		})
	}
}

func TestListenerDefaults(t *testing.T) {
	logging.SetLogLevel(logging.Error)

	_, ls, err := listeners(loadConfig(t, "testdata/normal_config.yaml"), mockClients(nil))
	require.NoError(t, err)
	require.Len(t, ls, 2)

	assert.Equal(t, 1883, ls[0].Config.MQTT.Port)
	assert.Equal(t, 8, ls[0].Config.Gotify.Priority)
	assert.Equal(t, "https://nvr.example.com", ls[0].Config.Frigate.ExternalUrl)
	assert.Equal(t, "http://gotify.local/message", ls[0].Gotify.URL())

	assert.Equal(t, 1884, ls[1].Config.MQTT.Port)
	assert.Equal(t, gotify.DefaultPriority, ls[1].Config.Gotify.Priority)
	assert.Equal(t, "http://frigate.local:5000", ls[1].Config.Frigate.ExternalUrl)
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Front Enterance", cleanString("front_enterance"))
	assert.Equal(t, "Person and Delivery Van", joinStringSlice([]string{"person", "delivery_van"}))
	assert.Equal(t, "", joinStringSlice(nil))
}

func TestCreateNotification(t *testing.T) {
	logging.SetLogLevel(logging.Error)

	_, ls, err := listeners(loadConfig(t, "testdata/single_device_config.yaml"), mockClients(nil))
	require.NoError(t, err)

	r := review{}
	require.NoError(t, json.Unmarshal([]byte(newAlert), &r))

	message, opts := ls[0].createNotification(&r)

	assert.Equal(t, "Person and Delivery Van detected at Front Enterance", message)
	require.NotNil(t, opts.Title)
	assert.Equal(t, "Frigate", *opts.Title)
	require.NotNil(t, opts.Data)
	assert.Equal(t, "5", opts.Data.Priority.String())
	require.NotNil(t, opts.Data.Image)
	assert.Equal(t, "https://nvr.example.com/api/events/1723938590.100000-latest/thumbnail.jpg", *opts.Data.Image)
	require.NotNil(t, opts.Data.ClickURL)
	assert.Equal(t, "https://nvr.example.com/review?id=1723938590.336533-y0wa6z", *opts.Data.ClickURL)

	// detections are left in their original order
	assert.Equal(t, "1723938588.335444-ctmuov", r.After.Data.Detections[0])
}

func TestListen(t *testing.T) {
	testCases := []struct {
		name            string
		payload         string
		expectedHits    int
		expectedMessage string
	}{
		{
			name:            "new_alert",
			payload:         newAlert,
			expectedHits:    1,
			expectedMessage: "Person and Delivery Van detected at Front Enterance ![](https://nvr.example.com/api/events/1723938590.100000-latest/thumbnail.jpg)",
		},
		{
			name:            "escalated_alert",
			payload:         escalatedAlert,
			expectedHits:    1,
			expectedMessage: "Car detected at Driveway ![](https://nvr.example.com/api/events/1.0-a/thumbnail.jpg)",
		},
		{name: "ended_alert", payload: endedAlert, expectedHits: 0},
		{name: "new_detection", payload: newDetection, expectedHits: 0},
		{name: "malformed_payload", payload: `{"type":"new",mb-front_garden}}`, expectedHits: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logging.SetLogLevel(logging.Error)
			logging.SetOutput(io.Discard)

			var mu sync.Mutex
			received := []map[string]any{}
			keys := []string{}

			gotifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body := map[string]any{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("Could not parse request body: %v", err)
				}
				mu.Lock()
				received = append(received, body)
				keys = append(keys, r.Header.Get("X-Gotify-Key"))
				mu.Unlock()
				w.WriteHeader(http.StatusOK)
			}))
			defer gotifyServer.Close()

			client := &mockMqtt.Client{}
			_, ls, err := listeners(loadConfig(t, "testdata/single_device_config.yaml"), mockClient(client))
			require.NoError(t, err)

			l := ls[0]
			l.Gotify, err = gotify.New(gotifyServer.URL, "xxxxxxxxxxxxxxx")
			require.NoError(t, err)

			l.Listen()
			require.True(t, client.Subscribed(reviewTopic))

			client.Publish(reviewTopic, 0, false, []byte(tc.payload))

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, received, tc.expectedHits)
			if tc.expectedHits == 0 {
				return
			}
			assert.Equal(t, "xxxxxxxxxxxxxxx", keys[0])
			assert.Equal(t, "Frigate", received[0]["title"])
			assert.Equal(t, tc.expectedMessage, received[0]["message"])
			assert.Equal(t, float64(gotify.DefaultPriority), received[0]["priority"])
		})
	}
}

func TestListenSubscribeError(t *testing.T) {
	logging.SetLogLevel(logging.Error)

	client := &mockMqtt.Client{SubscribeErr: errors.New("not authorized")}
	_, ls, err := listeners(loadConfig(t, "testdata/single_device_config.yaml"), mockClient(client))
	require.NoError(t, err)

	assert.NotPanics(t, func() { ls[0].Listen() })
	assert.False(t, client.Subscribed(reviewTopic))
}

func TestListenWithoutClient(t *testing.T) {
	logging.SetLogLevel(logging.Error)

	l := &listener{Config: &listenerConfig{}}
	assert.NotPanics(t, l.Listen)
}

func TestListenersOwnClients(t *testing.T) {
	logging.SetLogLevel(logging.Error)
	logging.SetOutput(io.Discard)

	created := []*mockMqtt.Client{}
	_, ls, err := listeners(loadConfig(t, "testdata/normal_config.yaml"), mockClients(&created))
	require.NoError(t, err)
	require.Len(t, ls, 2)
	require.Len(t, created, 2)
	assert.NotSame(t, created[0], created[1])

	var mu sync.Mutex
	hits := map[string]int{}
	for _, l := range ls {
		name := l.Config.Name
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(server.Close)

		l.Gotify, err = gotify.New(server.URL, l.Config.Gotify.Token)
		require.NoError(t, err)
		l.Listen()
	}

	assert.Same(t, created[0], ls[0].Config.Client)
	assert.Same(t, created[1], ls[1].Config.Client)
	require.True(t, created[0].Subscribed(reviewTopic))
	require.True(t, created[1].Subscribed(reviewTopic))

	created[0].Publish(reviewTopic, 0, false, []byte(newAlert))
	created[1].Publish(reviewTopic, 0, false, []byte(newAlert))
	created[1].Publish(reviewTopic, 0, false, []byte(escalatedAlert))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"garden": 1, "driveway": 2}, hits)
}

func TestListenersConnectFailure(t *testing.T) {
	logging.SetLogLevel(logging.Error)
	logging.SetOutput(io.Discard)

	factory := func(c *listenerConfig) (mqtt.Client, error) {
		if c.Name == "garden" {
			return nil, errors.New("connection refused")
		}
		return &mockMqtt.Client{}, nil
	}

	_, ls, err := listeners(loadConfig(t, "testdata/normal_config.yaml"), factory)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, "driveway", ls[0].Config.Name)
}
