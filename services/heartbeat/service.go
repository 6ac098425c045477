package heartbeat

import (
	"context"
	"time"

	"tegracode-go/bus"
	"tegracode-go/x/timex"
)

var (
	topicConfig = bus.Topic{"config", "heartbeat"}
	topicState  = bus.Topic{"heartbeat", "state"}
)

// Service publishes a retained liveness beacon and follows the beat
// period configured on config/heartbeat.
type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	started := time.Now()
	seq := 0
	beat := func() {
		seq++
		conn.Publish(conn.NewMessage(topicState, map[string]any{
			"seq":      seq,
			"uptime_s": int(time.Since(started) / time.Second),
			"ts_ms":    timex.NowMs(),
		}, true))
	}
	beat()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			beat()
		case msg := <-cfgSub.Channel():
			iv := intervalSeconds(msg.Payload)
			if iv <= 0 {
				continue
			}
			tick.Reset(time.Duration(iv) * time.Second)
			println("[heartbeat] interval set to", iv, "seconds")
		}
	}
}

// intervalSeconds pulls the beat period out of a config payload. JSON
// numbers arrive as float64; in-process publishers may send ints.
func intervalSeconds(payload any) int {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m["interval"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Start launches the beacon.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
