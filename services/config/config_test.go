// config/config_test.go
package config

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"tegracode-go/bus"
)

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(board string) ([]byte, bool) {
		if board != "p3310" {
			return nil, false
		}
		return []byte(`{
			"mode": "dev",
			"debug": true,
			"region": {"code": "eu"}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxBoardKey, "p3310")
	svc.Start(ctx, conn)

	// Retained messages arrive on subscribe even if the publisher ran
	// first.
	sub := conn.Subscribe(bus.Topic{configPrefix, "#"})
	defer conn.Unsubscribe(sub)

	wantCount := 3 // mode, debug, region
	got := map[string]any{}

	deadline := time.Now().Add(600 * time.Millisecond)
	for len(got) < wantCount && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if len(m.Topic) < 2 {
				t.Fatalf("unexpected topic length: %#v", m.Topic)
			}
			if !m.Retained {
				t.Fatalf("config message not retained: %#v", m.Topic)
			}
			key, ok := m.Topic[1].(string)
			if !ok {
				t.Fatalf("topic[1] type %T, want string", m.Topic[1])
			}
			got[key] = m.Payload
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(got) != wantCount {
		t.Fatalf("expected %d retained messages, got %d (%v)", wantCount, len(got), got)
	}

	if s, ok := got["mode"].(string); !ok || s != "dev" {
		t.Fatalf("mode payload = %#v, want \"dev\"", got["mode"])
	}
	if bv, ok := got["debug"].(bool); !ok || bv != true {
		t.Fatalf("debug payload = %#v, want true", got["debug"])
	}
	region, ok := got["region"].(map[string]any)
	if !ok {
		t.Fatalf("region payload type = %T, want map[string]any", got["region"])
	}
	if code, ok := region["code"].(string); !ok || code != "eu" {
		t.Fatalf("region.code = %#v, want \"eu\"", region["code"])
	}
}

func TestConfig_PublishConfig_MissingBoard(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-board")
	svc := NewConfigService()

	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing board id, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(board string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxBoardKey, "unknown-board")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}

// The embedded profiles must stay decodable and carry the sections the
// services subscribe to.
func TestConfig_EmbeddedProfilesWellFormed(t *testing.T) {
	for board, raw := range embeddedConfigs {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("board %s: %v", board, err)
		}
		for _, section := range []string{"hal", "heartbeat", "console"} {
			if _, ok := m[section]; !ok {
				t.Errorf("board %s: missing %q section", board, section)
			}
		}
		hal, ok := m["hal"].(map[string]any)
		if !ok {
			t.Fatalf("board %s: hal section is %T", board, m["hal"])
		}
		if _, ok := hal["devices"].([]any); !ok {
			t.Errorf("board %s: hal.devices is %T", board, hal["devices"])
		}
	}
}
