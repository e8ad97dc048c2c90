// Package mqttclient builds a single paho.mqtt.golang client shared by
// ingestion, state-sync, and the publisher, collapsing the teacher's two
// near-identical constructors into one with reconnect backoff (§4.1).
package mqttclient

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// New builds a paho client configured for a clean session, a unique
// client id, and indefinite reconnect with bounded backoff starting
// around 5s (§4.1 Connection). It does not connect; call Connect.
func New(host string, port int, clientID string, logger *zap.Logger) mqtt.Client {
	broker := fmt.Sprintf("tcp://%s:%d", host, port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(60 * time.Second).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Info("mqtt connected", zap.String("broker", broker))
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			logger.Info("mqtt reconnecting", zap.String("broker", broker))
		})
	return mqtt.NewClient(opts)
}

// Connect blocks until the initial connection succeeds or fails once;
// callers rely on the client's own AutoReconnect for everything after.
func Connect(client mqtt.Client) error {
	token := client.Connect()
	token.Wait()
	return token.Error()
}
