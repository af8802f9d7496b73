// Package gotify sends push notifications through a Gotify server and exposes
// configured gotify devices as HTTP routes.
package gotify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kennedn/restate-gotify/internal/common/logging"
)

// Timeout bounds a single delivery attempt.
const Timeout = 10 * time.Second

var (
	ErrInvalidURL   = errors.New("invalid gotify url")
	ErrMissingToken = errors.New("missing gotify token")
)

// Service posts notifications to a single gotify application.
type Service struct {
	url    string
	token  string
	client *http.Client
}

// New validates the base url and application token of a gotify server.
// The returned service targets the message endpoint below url.
func New(rawURL string, token string) (*Service, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	if !strings.HasSuffix(rawURL, "/") {
		rawURL += "/"
	}

	return &Service{
		url:   rawURL + "message",
		token: token,
		client: &http.Client{
			Timeout: Timeout,
		},
	}, nil
}

// URL returns the message endpoint notifications are posted to.
func (s *Service) URL() string {
	return s.url
}

// Send delivers message and returns once the delivery attempt has finished.
// Failures are logged and never returned.
func (s *Service) Send(message string, opts Options) {
	<-s.SendAsync(message, opts)
}

// SendAsync builds the payload for message and posts it from a separate
// goroutine. The returned channel is closed when the attempt has finished.
func (s *Service) SendAsync(message string, opts Options) <-chan struct{} {
	done := make(chan struct{})

	body, err := json.Marshal(BuildPayload(message, opts))
	if err != nil {
		logging.Log(logging.Error, "Error while sending gotify message: %v", err)
		close(done)
		return done
	}
	logging.Log(logging.Debug, "Sending message to gotify: %s", body)

	go func() {
		defer close(done)
		if err := s.post(body); err != nil {
			logging.Log(logging.Error, "Error while sending gotify message: %v", err)
		}
	}()
	return done
}

func (s *Service) post(body []byte) error {
	method := "POST"

	req, err := http.NewRequest(method, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), s.url)
	}

	logging.NginxLog(logging.Info, method, s.url, req, resp)
	return nil
}
