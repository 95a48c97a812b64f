package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"countertime/internal/config"
	"countertime/internal/logger"
	"countertime/internal/occupancy"
	"countertime/internal/services/analysis"
)

var ErrNotConnected = errors.New("mqtt not connected")

// MQTTPublisher publishes visit events to <topic>/entry and <topic>/exit.
type MQTTPublisher struct {
	broker   string
	clientID string
	topic    string
	logger   *logger.Logger
	client   mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

func NewMQTTPublisher(cfg *config.Config, logger *logger.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    cfg.MQTTBroker,
		clientID:  cfg.MQTTClientID,
		topic:     strings.TrimSuffix(cfg.MQTTTopic, "/"),
		logger:    logger,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection. The client reconnects on its
// own after that.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.broker))
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("MQTT connection established: %s", p.broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	p.client = mqtt.NewClient(opts)
	p.logger.Info("Connecting to MQTT broker %s", p.broker)

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

func (p *MQTTPublisher) VisitOpened(runID string, v occupancy.OpenVisit) error {
	return p.publish("entry", analysis.EntryEvent(runID, v))
}

func (p *MQTTPublisher) VisitClosed(runID string, v occupancy.ClosedVisit) error {
	return p.publish("exit", analysis.ExitEvent(runID, v))
}

func (p *MQTTPublisher) publish(kind string, event any) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := p.topic + "/" + kind
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected")
	}
	p.setConnected(false)
}

// Stats contains publisher statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{Connected: p.connected, Published: published, Errors: p.errors}
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
