// Package mqtt publishes Ring history events to an MQTT broker for Home
// Assistant. It defines the Publisher interface and includes both a
// StubPublisher (no-op) and an HAPublisher that connects to a broker,
// announces availability, publishes an auto-discovery config and forwards
// each new event.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	ring "github.com/tj-smith47/ring-go"
)

// ---------------------------------------------------------------------------
// Publisher interface
// ---------------------------------------------------------------------------

// Publisher sends events to an MQTT broker.
type Publisher interface {
	// Start connects to the broker.
	Start(ctx context.Context) error
	// PublishEvent announces one history event.
	PublishEvent(ctx context.Context, evt Event) error
	// Stop shuts down the publisher.
	Stop(ctx context.Context) error
}

// Event is the JSON payload published for a history event.
type Event struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	CreatedAt          time.Time `json:"created_at"`
	Answered           bool      `json:"answered"`
	Favorite           bool      `json:"favorite"`
	DoorbotID          int64     `json:"doorbot_id"`
	DoorbotDescription string    `json:"doorbot_description"`
	RecordingStatus    string    `json:"recording_status,omitempty"`
	RecordingFile      string    `json:"recording_file,omitempty"`
}

// EventFromHistory converts a history entry. file is the saved recording
// path, or empty when none was written.
func EventFromHistory(e ring.DoorbotHistoryEvent, file string) Event {
	evt := Event{
		ID:                 e.DingID(),
		Kind:               e.Kind,
		CreatedAt:          e.CreatedAt,
		Answered:           e.Answered,
		Favorite:           e.Favorite,
		DoorbotID:          e.Doorbot.ID,
		DoorbotDescription: e.Doorbot.Description,
		RecordingFile:      file,
	}
	if e.Recording != nil {
		evt.RecordingStatus = e.Recording.Status
	}
	return evt
}

// ---------------------------------------------------------------------------
// StubPublisher (no-op, used when MQTT is disabled)
// ---------------------------------------------------------------------------

// StubPublisher is a no-op publisher for when MQTT is not configured.
type StubPublisher struct {
	log *slog.Logger
}

// NewStubPublisher creates a no-op MQTT publisher.
func NewStubPublisher(log *slog.Logger) *StubPublisher {
	return &StubPublisher{log: log}
}

// Start is a no-op.
func (s *StubPublisher) Start(_ context.Context) error {
	s.log.Info("MQTT publisher disabled (stub)")
	return nil
}

// PublishEvent only logs the event.
func (s *StubPublisher) PublishEvent(_ context.Context, evt Event) error {
	s.log.Debug("MQTT disabled, event not published", "id", evt.ID, "kind", evt.Kind)
	return nil
}

// Stop is a no-op.
func (s *StubPublisher) Stop(_ context.Context) error {
	return nil
}

// Ensure StubPublisher implements Publisher.
var _ Publisher = (*StubPublisher)(nil)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds MQTT publisher configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	DeviceID    string
}

// ---------------------------------------------------------------------------
// HAPublisher – Home Assistant MQTT implementation
// ---------------------------------------------------------------------------

// client is the part of pahomqtt.Client the publisher uses.
type client interface {
	Connect() pahomqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Ensure HAPublisher implements Publisher at compile time.
var _ Publisher = (*HAPublisher)(nil)

// HAPublisher publishes a Home Assistant auto-discovery config and forwards
// history events to the broker.
type HAPublisher struct {
	cfg Config
	log *slog.Logger

	newClient func(*pahomqtt.ClientOptions) client
	client    client
}

// NewHAPublisher creates a new Home Assistant MQTT publisher.
func NewHAPublisher(cfg Config, log *slog.Logger) *HAPublisher {
	return &HAPublisher{
		cfg: cfg,
		log: log,
		newClient: func(opts *pahomqtt.ClientOptions) client {
			return pahomqtt.NewClient(opts)
		},
	}
}

// clientOptions builds the broker options. The client id carries a random
// suffix so two daemons on one account do not kick each other off.
func (p *HAPublisher) clientOptions() *pahomqtt.ClientOptions {
	return pahomqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(fmt.Sprintf("ring-%s-%s", p.cfg.DeviceID, uuid.NewString()[:8])).
		SetUsername(p.cfg.Username).
		SetPassword(p.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topic("status"), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			p.log.Info("MQTT connected, publishing discovery")
			p.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			p.log.Warn("MQTT connection lost", "error", err)
		})
}

// Start connects to the MQTT broker. Availability and discovery are
// published from the connect handler, so they are repeated on reconnect.
func (p *HAPublisher) Start(_ context.Context) error {
	p.client = p.newClient(p.clientOptions())

	token := p.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	p.log.Info("MQTT publisher started", "broker", p.cfg.Broker)
	return nil
}

// Stop publishes offline availability and disconnects.
func (p *HAPublisher) Stop(_ context.Context) error {
	p.log.Info("MQTT publisher stopping")
	if p.client != nil && p.client.IsConnected() {
		p.publish(p.topic("status"), "offline", true)
		p.client.Disconnect(1000)
	}
	p.log.Info("MQTT publisher stopped")
	return nil
}

func (p *HAPublisher) onConnect() {
	p.publish(p.topic("status"), "online", true)
	p.publishDiscovery()
}

// ---------------------------------------------------------------------------
// Discovery configs
// ---------------------------------------------------------------------------

func (p *HAPublisher) deviceInfo() map[string]interface{} {
	return map[string]interface{}{
		"identifiers":  []string{p.cfg.DeviceID},
		"name":         "Ring",
		"manufacturer": "Ring",
		"model":        "Doorbell account",
	}
}

// discoveryTopic builds the HA auto-discovery topic.
func discoveryTopic(component, deviceID, objectID string) string {
	return fmt.Sprintf("homeassistant/%s/%s_%s/config", component, deviceID, objectID)
}

func (p *HAPublisher) publishDiscovery() {
	id := p.cfg.DeviceID
	payload := map[string]interface{}{
		"name":                  "Ring Last Event",
		"unique_id":             fmt.Sprintf("%s_last_event", id),
		"state_topic":           p.topic("last_event"),
		"value_template":        "{{ value_json.kind }}",
		"json_attributes_topic": p.topic("last_event"),
		"icon":                  "mdi:doorbell-video",
		"device":                p.deviceInfo(),
		"availability":          map[string]interface{}{"topic": p.topic("status")},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("failed to marshal discovery config", "error", err)
		return
	}
	p.publish(discoveryTopic("sensor", id, "last_event"), string(data), true)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// PublishEvent sends evt to {prefix}/{device_id}/event/{kind} and keeps it
// retained on {prefix}/{device_id}/last_event.
func (p *HAPublisher) PublishEvent(_ context.Context, evt Event) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("mqtt publish %s: not connected", evt.ID)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("mqtt marshal %s: %w", evt.ID, err)
	}
	if err := p.send(p.topic("event/"+evt.Kind), string(data), false); err != nil {
		return err
	}
	return p.send(p.topic("last_event"), string(data), true)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// topic builds a full topic path: {prefix}/{device_id}/{suffix}.
func (p *HAPublisher) topic(suffix string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, p.cfg.DeviceID, suffix)
}

func (p *HAPublisher) send(topic, payload string, retained bool) error {
	token := p.client.Publish(topic, 1, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// publish is a convenience wrapper that publishes a message and logs errors.
func (p *HAPublisher) publish(topic, payload string, retained bool) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}
	if err := p.send(topic, payload, retained); err != nil {
		p.log.Error("mqtt publish failed", "topic", topic, "error", err)
	}
}
