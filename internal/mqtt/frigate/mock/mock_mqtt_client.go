// Package mockPahoMqtt provides an in-memory paho client. Messages published
// through it are delivered synchronously to matching subscriptions.
package mockPahoMqtt

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	// SubscribeErr is returned by the token of every Subscribe call.
	SubscribeErr error

	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
}

func (c *Client) IsConnected() bool      { return true }
func (c *Client) IsConnectionOpen() bool { return true }
func (c *Client) Connect() mqtt.Token    { return &Token{} }
func (c *Client) Disconnect(uint)        {}

// Publish delivers payload to the handler subscribed to topic, if any.
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	handler, ok := c.handlers[topic]
	c.mu.Unlock()

	if ok {
		var raw []byte
		switch p := payload.(type) {
		case []byte:
			raw = p
		case string:
			raw = []byte(p)
		}
		handler(c, &Message{topic: topic, qos: qos, retained: retained, payload: raw})
	}
	return &Token{}
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	if c.SubscribeErr != nil {
		return &Token{err: c.SubscribeErr}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = map[string]mqtt.MessageHandler{}
	}
	c.handlers[topic] = callback
	return &Token{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return &Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.handlers, topic)
	}
	return &Token{}
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// Subscribed reports whether a handler is registered for topic.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

type Message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return m.qos }
func (m *Message) Retained() bool    { return m.retained }
func (m *Message) Topic() string     { return m.topic }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.payload }
func (m *Message) Ack()              {}

// Token is already complete when returned.
type Token struct {
	err error
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Error() error                   { return t.err }

func (t *Token) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
