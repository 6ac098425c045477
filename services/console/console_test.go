// console/console_test.go
package console

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"tegracode-go/bus"
)

func TestConsole_ServesCommandsOverTCP(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("console_test")

	// Stand-in for the HAL: answer control requests, hold a retained
	// service state.
	halConn := b.NewConnection("hal_stub")
	halConn.Publish(halConn.NewMessage(bus.Topic{"hal", "state"},
		map[string]any{"level": "ready", "status": "configured"}, true))
	ctrlSub := halConn.Subscribe(bus.Topic{"hal", "capability", "#"})
	defer halConn.Unsubscribe(ctrlSub)
	go func() {
		for m := range ctrlSub.Channel() {
			if len(m.Topic) < 6 {
				continue
			}
			method, _ := m.Topic[5].(string)
			switch method {
			case "dump":
				_ = halConn.Reply(m, map[string]any{
					"ok": true, "dump": "port A (controller 2 slot 0, 7 pins)\n"}, false)
			case "get":
				_ = halConn.Reply(m, map[string]any{
					"ok": true, "result": map[string]any{"level": 1}}, false)
			case "set":
				_ = halConn.Reply(m, map[string]any{"ok": true}, false)
			default:
				_ = halConn.Reply(m, map[string]any{
					"ok": false, "error": "unsupported", "detail": method}, false)
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"console", "state"})
	defer conn.Unsubscribe(stateSub)

	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")

	conn.Publish(conn.NewMessage(bus.Topic{"config", "console"},
		`{"listen":"127.0.0.1:0"}`, false))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "listening")
	addr, _ := up["addr"].(string)
	if addr == "" {
		t.Fatalf("listening state has no addr: %v", up)
	}

	c, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer c.Close()
	rd := bufio.NewReader(c)

	if line := readLine(t, c, rd); !strings.Contains(line, "console") {
		t.Fatalf("banner = %q", line)
	}

	send(t, c, "dump\n")
	if line := readLine(t, c, rd); !strings.Contains(line, "port A") {
		t.Fatalf("dump output = %q", line)
	}

	send(t, c, "get gpio pwr_en\n")
	if line := readLine(t, c, rd); line != `ok {"result":{"level":1}}` {
		t.Fatalf("get output = %q", line)
	}

	send(t, c, "set gpio pwr_en 1\n")
	if line := readLine(t, c, rd); line != "ok" {
		t.Fatalf("set output = %q", line)
	}

	send(t, c, "set gpio pwr_en up\n")
	if line := readLine(t, c, rd); !strings.Contains(line, "bad level") {
		t.Fatalf("bad set output = %q", line)
	}

	send(t, c, "call gpio pwr_en warp\n")
	if line := readLine(t, c, rd); !strings.Contains(line, "error unsupported") {
		t.Fatalf("call output = %q", line)
	}

	send(t, c, "state\n")
	if line := readLine(t, c, rd); !strings.Contains(line, "ready") {
		t.Fatalf("state output = %q", line)
	}

	send(t, c, "bogus\n")
	if line := readLine(t, c, rd); !strings.Contains(line, "unknown command") {
		t.Fatalf("unknown command output = %q", line)
	}

	// quit closes the session from the server side.
	send(t, c, "quit\n")
	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := rd.ReadString('\n'); err == nil {
		t.Fatal("session still open after quit")
	}
}

func TestConsole_BadConfigReportsError(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("console_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"console", "state"})
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // initial awaiting_config

	conn.Publish(conn.NewMessage(bus.Topic{"config", "console"}, 42, false))

	errState := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, errState, "error", "config_decode_failed")
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func send(t *testing.T, c net.Conn, s string) {
	t.Helper()
	_ = c.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := c.Write([]byte(s)); err != nil {
		t.Fatalf("write %q: %v", s, err)
	}
}

func readLine(t *testing.T, c net.Conn, rd *bufio.Reader) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := rd.ReadString('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for console/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
