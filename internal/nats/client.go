// Package nats relays telemetry snapshots and issued commands over NATS JetStream.
package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/saviobatista/testvehicle/internal/logger"
	"github.com/saviobatista/testvehicle/internal/types"
)

const (
	SubjectTelemetry = "vehicle.telemetry"
	SubjectCommands  = "vehicle.commands"

	StreamName = "VEHICLE"
)

var errNotConnected = errors.New("NATS client not connected")

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("failed to connect to NATS: empty URL")
	}

	nc, err := nats.Connect(url, nats.Name("testvehicle"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectTelemetry, SubjectCommands},
		Storage:  nats.MemoryStorage,
		MaxAge:   time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishSnapshot publishes a telemetry snapshot
func (c *Client) PublishSnapshot(s *types.Snapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	return c.publish(SubjectTelemetry, s)
}

// PublishCommand publishes a command record
func (c *Client) PublishCommand(r *types.CommandRecord) error {
	if r == nil {
		return fmt.Errorf("command record is nil")
	}
	return c.publish(SubjectCommands, r)
}

func (c *Client) publish(subject string, v interface{}) error {
	if c.js == nil {
		return errNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = c.js.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// SubscribeSnapshots subscribes to relayed telemetry snapshots
func (c *Client) SubscribeSnapshots(handler func(*types.Snapshot)) error {
	return c.subscribe(SubjectTelemetry, func(data []byte) error {
		var s types.Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		handler(&s)
		return nil
	})
}

// SubscribeCommands subscribes to relayed command records
func (c *Client) SubscribeCommands(handler func(*types.CommandRecord)) error {
	return c.subscribe(SubjectCommands, func(data []byte) error {
		var r types.CommandRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		handler(&r)
		return nil
	})
}

func (c *Client) subscribe(subject string, decode func([]byte) error) error {
	if c.js == nil {
		return errNotConnected
	}

	log := logger.WithComponent("nats")
	_, err := c.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := decode(msg.Data); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("Error unmarshaling message")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
