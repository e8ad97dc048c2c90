// Package publisher maintains the single long-lived MQTT connection
// used for outbound device commands (§4.6).
package publisher

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher owns the process-wide outbound publish connection. Connect
// is guarded by a mutex; Publish itself never holds that lock once
// connected (§5 Concurrency & Resource Model).
type Publisher struct {
	client    mqtt.Client
	enabled   bool
	baseTopic string
	logger    *zap.Logger

	connectMu sync.Mutex
}

// New wraps an already-constructed (but not necessarily connected)
// mqtt.Client as the command-path publisher.
func New(client mqtt.Client, enabled bool, baseTopic string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, enabled: enabled, baseTopic: baseTopic, logger: logger.Named("publisher")}
}

// ensureConnected performs a single-flight, idempotent connect.
func (p *Publisher) ensureConnected() error {
	if !p.enabled {
		return fmt.Errorf("publisher: mqtt disabled")
	}
	if p.client.IsConnected() {
		return nil
	}
	p.connectMu.Lock()
	defer p.connectMu.Unlock()
	if p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publisher: connect timed out")
	}
	return token.Error()
}

// Publish serializes value (if not already []byte) to JSON and
// publishes it to topic with at-least-once delivery. If not connected,
// it retries the connection exactly once before giving up (§4.6).
func (p *Publisher) Publish(topic string, value interface{}) error {
	if err := p.ensureConnected(); err != nil {
		if err2 := p.ensureConnected(); err2 != nil {
			return fmt.Errorf("publisher: not connected: %w", err2)
		}
	}

	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("publisher: encoding payload: %w", err)
		}
		payload = b
	}

	token := p.client.Publish(topic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("publisher: publish %q: %w", topic, err)
	}
	return nil
}

// PublishSet publishes {property: value} to <base>/<deviceId>/set.
func (p *Publisher) PublishSet(deviceID, property string, value interface{}) error {
	topic := fmt.Sprintf("%s/%s/set", p.baseTopic, deviceID)
	return p.Publish(topic, map[string]interface{}{property: value})
}

// PublishGet publishes {"state": ""} to <base>/<deviceId>/get.
func (p *Publisher) PublishGet(deviceID string) error {
	topic := fmt.Sprintf("%s/%s/get", p.baseTopic, deviceID)
	return p.Publish(topic, map[string]interface{}{"state": ""})
}

// PublishPermitJoin requests or ends a pairing window.
func (p *Publisher) PublishPermitJoin(enable bool, seconds int) error {
	topic := fmt.Sprintf("%s/bridge/request/permit_join", p.baseTopic)
	return p.Publish(topic, map[string]interface{}{"value": enable, "time": seconds})
}
