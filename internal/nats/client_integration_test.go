package nats

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saviobatista/testvehicle/internal/types"
)

// setupNATS starts a NATS container with JetStream and returns a connected client
func setupNATS(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := natscontainer.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server is ready"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate NATS container: %v", err)
		}
	})

	natsURL, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	client, err := New(natsURL)
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNATSClient_Integration_Connection(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := setupNATS(t)

	if client.conn == nil {
		t.Error("Expected connection to be initialized")
	}
	if client.js == nil {
		t.Error("Expected JetStream context to be initialized")
	}

	// A second client must reuse the existing stream
	second, err := New(client.conn.ConnectedUrl())
	if err != nil {
		t.Fatalf("Failed to create second client: %v", err)
	}
	second.Close()
}

func TestNATSClient_Integration_Snapshots(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := setupNATS(t)

	received := make(chan *types.Snapshot, 1)
	if err := client.SubscribeSnapshots(func(s *types.Snapshot) { received <- s }); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	snapshot := &types.Snapshot{
		SessionID: "session-1",
		Device:    "ArduCopter [1:1]",
		Fields: []types.Field{
			{Name: "Link", Value: "Connected"},
			{Name: "Home", Value: "Not Accessible"},
		},
		Timestamp: time.Now().UTC(),
	}
	if err := client.PublishSnapshot(snapshot); err != nil {
		t.Fatalf("Failed to publish snapshot: %v", err)
	}

	select {
	case got := <-received:
		if got.Device != snapshot.Device {
			t.Errorf("Expected device %s, got %s", snapshot.Device, got.Device)
		}
		if v, ok := got.Value("Home"); !ok || v != "Not Accessible" {
			t.Errorf("Expected Home placeholder, got %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for snapshot")
	}
}

func TestNATSClient_Integration_Commands(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := setupNATS(t)

	commands := []string{"Takeoff", "GOTO: delta=10 Azimuth=90", "DoLand"}
	received := make(chan *types.CommandRecord, len(commands))
	if err := client.SubscribeCommands(func(r *types.CommandRecord) { received <- r }); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	for _, cmd := range commands {
		err := client.PublishCommand(&types.CommandRecord{
			SessionID: "session-1",
			Device:    "ArduCopter [1:1]",
			Command:   cmd,
			Issued:    time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Failed to publish command: %v", err)
		}
	}

	for i, want := range commands {
		select {
		case got := <-received:
			if got.Command != want {
				t.Errorf("Command %d: expected %q, got %q", i, want, got.Command)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout waiting for command %d", i)
		}
	}
}
