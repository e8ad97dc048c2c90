package publisher

import (
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToken struct {
	err error
}

func (f *fakeToken) Wait() bool                       { return true }
func (f *fakeToken) WaitTimeout(time.Duration) bool    { return true }
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (f *fakeToken) Error() error { return f.err }

type fakeClient struct {
	connected    bool
	connectErr   error
	publishes    []struct{ topic string; payload []byte }
	publishErr   error
}

func (c *fakeClient) IsConnected() bool       { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool  { return c.connected }
func (c *fakeClient) Connect() mqtt.Token {
	if c.connectErr == nil {
		c.connected = true
	}
	return &fakeToken{err: c.connectErr}
}
func (c *fakeClient) Disconnect(quiesce uint) {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.publishes = append(c.publishes, struct{ topic string; payload []byte }{topic, b})
	return &fakeToken{err: c.publishErr}
}
func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token { return &fakeToken{} }
func (c *fakeClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func TestPublish_ConnectsThenPublishesJSONPayload(t *testing.T) {
	client := &fakeClient{}
	p := New(client, true, "sdhome", zap.NewNop())

	err := p.PublishSet("light-1", "state", "ON")
	require.NoError(t, err)

	require.Len(t, client.publishes, 1)
	assert.Equal(t, "sdhome/light-1/set", client.publishes[0].topic)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(client.publishes[0].payload, &decoded))
	assert.Equal(t, "ON", decoded["state"])
}

func TestPublish_DisabledReturnsError(t *testing.T) {
	client := &fakeClient{}
	p := New(client, false, "sdhome", zap.NewNop())

	err := p.PublishGet("light-1")
	assert.Error(t, err)
	assert.Empty(t, client.publishes)
}

func TestPublishPermitJoin_PublishesToBridgeRequestTopic(t *testing.T) {
	client := &fakeClient{}
	p := New(client, true, "sdhome", zap.NewNop())

	require.NoError(t, p.PublishPermitJoin(true, 60))
	require.Len(t, client.publishes, 1)
	assert.Equal(t, "sdhome/bridge/request/permit_join", client.publishes[0].topic)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(client.publishes[0].payload, &decoded))
	assert.Equal(t, true, decoded["value"])
	assert.EqualValues(t, 60, decoded["time"])
}

func TestPublish_AlreadyConnectedSkipsReconnect(t *testing.T) {
	client := &fakeClient{connected: true}
	p := New(client, true, "sdhome", zap.NewNop())

	require.NoError(t, p.PublishGet("light-1"))
	require.Len(t, client.publishes, 1)
}
