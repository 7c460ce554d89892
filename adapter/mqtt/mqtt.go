// Package mqtt publishes conversion completion events to an MQTT v5 broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/justapithecus/canlog/adapter"
)

// DefaultTopic is the default publish topic.
const DefaultTopic = "canlog/conversion_completed"

// DefaultTimeout bounds dial, connect and publish.
const DefaultTimeout = 5 * time.Second

// DefaultKeepAlive is the MQTT keep-alive in seconds.
const DefaultKeepAlive = 30

// Config configures the MQTT adapter.
type Config struct {
	// URL is the broker address: tcp://host:port, mqtt://host:port or host:port.
	URL string
	// Topic defaults to DefaultTopic.
	Topic string
	// QoS is 0 or 1.
	QoS      byte
	Retain   bool
	ClientID string
	Username string
	Password string
	// Timeout bounds each attempt (default 5s).
	Timeout time.Duration
	// Retries is the number of retries after the first attempt.
	Retries int
	// Backoff is the delay before the first retry (default 500ms).
	Backoff time.Duration
}

// Adapter publishes events to an MQTT broker. The connection is opened on
// first publish and reused until Close.
type Adapter struct {
	config Config
	addr   string

	mu     sync.Mutex
	client *paho.Client
}

// New creates an MQTT adapter. No connection is made until Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("mqtt adapter requires a URL")
	}
	addr, err := brokerAddr(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("mqtt adapter: invalid URL: %w", err)
	}
	if cfg.QoS > 1 {
		return nil, fmt.Errorf("mqtt adapter: qos must be 0 or 1, got %d", cfg.QoS)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("mqtt: %w, got %d", adapter.ErrNegativeRetries, cfg.Retries)
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "canlog"
	}
	return &Adapter{config: cfg, addr: addr}, nil
}

// brokerAddr extracts host:port from the broker URL.
func brokerAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err == nil && u.Host != "" {
		switch u.Scheme {
		case "tcp", "mqtt":
			return u.Host, nil
		default:
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}
	if _, _, err := net.SplitHostPort(raw); err != nil {
		return "", err
	}
	return raw, nil
}

// Publish sends the event as JSON to the configured topic.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ConversionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mqtt: marshal event: %w", err)
	}

	return adapter.Retry(ctx, "mqtt", a.config.Retries, a.config.Backoff, nil,
		func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
			defer cancel()
			return a.publish(attemptCtx, body)
		})
}

func (a *Adapter) publish(ctx context.Context, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		client, err := a.connect(ctx)
		if err != nil {
			return err
		}
		a.client = client
	}

	_, err := a.client.Publish(ctx, &paho.Publish{
		Topic:   a.config.Topic,
		QoS:     a.config.QoS,
		Retain:  a.config.Retain,
		Payload: body,
	})
	if err != nil {
		// Drop the connection so the next attempt reconnects.
		_ = a.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		a.client = nil
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (a *Adapter) connect(ctx context.Context) (*paho.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", a.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", a.addr, err)
	}

	client := paho.NewClient(paho.ClientConfig{Conn: conn})
	cp := &paho.Connect{
		KeepAlive:    DefaultKeepAlive,
		ClientID:     a.config.ClientID,
		CleanStart:   true,
		Username:     a.config.Username,
		Password:     []byte(a.config.Password),
		UsernameFlag: a.config.Username != "",
		PasswordFlag: a.config.Password != "",
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect %s: %w", a.addr, err)
	}
	if ca.ReasonCode != 0 {
		_ = conn.Close()
		reason := ""
		if ca.Properties != nil {
			reason = ca.Properties.ReasonString
		}
		return nil, fmt.Errorf("connect %s: reason %d %s", a.addr, ca.ReasonCode, reason)
	}
	return client, nil
}

// Close disconnects from the broker if connected.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	a.client = nil
	return err
}

var _ adapter.Adapter = (*Adapter)(nil)
