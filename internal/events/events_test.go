package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNATSPublisher_PublishesJSON(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("warren.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatalf("flushing subscription: %v", err)
	}

	event := EnvironmentDeleted{EnvironmentID: "env-1", Schema: "warren_abc"}
	if err := pub.Publish(context.Background(), TopicEnvironmentDeleted, event); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != TopicEnvironmentDeleted {
			t.Errorf("subject = %q, want %q", msg.Subject, TopicEnvironmentDeleted)
		}
		var got EnvironmentDeleted
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshaling payload: %v", err)
		}
		if got != event {
			t.Errorf("payload = %+v, want %+v", got, event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestNoopPublisher(t *testing.T) {
	p := &NoopPublisher{}
	if err := p.Publish(context.Background(), TopicStreamStarted, nil); err != nil {
		t.Errorf("Publish() error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
