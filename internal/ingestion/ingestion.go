// Package ingestion implements the §4.1 worker: a persistent broker
// subscription that dispatches every inbound message to either the
// bridge/pairing handler or the signals pipeline.
package ingestion

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"sdhome/internal/pairing"
)

// SignalHandler is the subset of signals.Service the worker calls into.
type SignalHandler interface {
	Handle(ctx context.Context, topic string, payload []byte)
}

// Worker subscribes to <base>/# and routes messages per §4.1.
type Worker struct {
	client    mqtt.Client
	baseTopic string
	enabled   bool
	pairing   *pairing.Machine
	signals   SignalHandler
	logger    *zap.Logger
}

// New builds a Worker.
func New(client mqtt.Client, baseTopic string, enabled bool, pairingMachine *pairing.Machine, signals SignalHandler, logger *zap.Logger) *Worker {
	return &Worker{
		client:    client,
		baseTopic: baseTopic,
		enabled:   enabled,
		pairing:   pairingMachine,
		signals:   signals,
		logger:    logger.Named("ingestion"),
	}
}

// Run connects and subscribes, blocking until ctx is cancelled. It
// never returns an error for connection failures; those are retried
// indefinitely by the underlying client's auto-reconnect (§4.1).
func (w *Worker) Run(ctx context.Context) {
	if !w.enabled {
		w.logger.Info("ingestion worker disabled, idling")
		<-ctx.Done()
		return
	}

	topicFilter := w.baseTopic + "/#"
	token := w.client.Subscribe(topicFilter, 1, w.onMessage(ctx))
	token.Wait()
	if err := token.Error(); err != nil {
		w.logger.Error("initial subscribe failed, relying on reconnect handler", zap.Error(err))
	} else {
		w.logger.Info("subscribed", zap.String("filter", topicFilter))
	}

	<-ctx.Done()
	w.client.Unsubscribe(topicFilter)
}

// onMessage returns the paho callback. Messages on one connection
// arrive sequentially by design of the paho client's dispatch
// goroutine, preserving broker order per device (§4.1, §5).
func (w *Worker) onMessage(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		topic := msg.Topic()
		payload := msg.Payload()

		switch {
		case topic == w.baseTopic+"/bridge/event":
			w.pairing.HandleBridgeEvent(ctx, payload)
		case topic == w.baseTopic+"/bridge/response/permit_join":
			w.pairing.HandlePermitJoinResponse(ctx, payload)
		case strings.HasPrefix(strings.TrimPrefix(topic, w.baseTopic+"/"), "bridge/"):
			// other bridge chatter (log messages, info) not part of pairing.
			w.logger.Debug("ignoring bridge topic", zap.String("topic", topic))
		default:
			w.signals.Handle(ctx, topic, payload)
		}
	}
}

// PairingTicker drives Machine.Tick once per second for the lifetime
// of ctx; a thin ambient loop separate from the message-driven state
// transitions.
func PairingTicker(ctx context.Context, m *pairing.Machine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}
