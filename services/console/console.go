// console/console.go
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/shlex"

	"tegracode-go/bus"
	"tegracode-go/x/timex"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start runs the operator console. It blocks until ctx is cancelled and
// (re)configures the listener from JSON on topic {"config","console"}.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"console", "state"},
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

const (
	defaultListen  = "127.0.0.1:7700"
	requestTimeout = 2 * time.Second
)

// Config is the JSON configuration expected on "config/console".
type Config struct {
	Listen string `json:"listen"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "console"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runListener(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Listener supervision
// -----------------------------------------------------------------------------

func (s *Service) runListener(ctx context.Context, cfg Config) {
	addr := cfg.Listen
	if addr == "" {
		addr = defaultListen
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "listen_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		s.publishListening(ln.Addr().String())

		err = s.acceptLoop(ctx, ln)
		_ = ln.Close()
		if ctx.Err() != nil {
			return
		}
		delay := backoff()
		s.publishState("degraded", "accept_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (s *Service) acceptLoop(ctx context.Context, ln net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleSession(ctx, c)
	}
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

const helpText = `commands:
  state                          hal service state
  dump                           controller register dump
  get <kind> <name>              read a pin capability
  set <kind> <name> <0|1>        drive an output
  toggle <kind> <name>           flip an output
  read <kind> <name>             sample an input now
  rate <kind> <name> <ms>        set the poll period
  call <kind> <name> <m> [json]  raw control call
  quit                           close this session
`

func (s *Service) handleSession(ctx context.Context, c net.Conn) {
	defer c.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	fmt.Fprintln(c, "tegracode console (help for commands)")

	sc := bufio.NewScanner(c)
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(c, "parse error:", err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		s.dispatch(ctx, c, args)
	}
}

func (s *Service) dispatch(ctx context.Context, w io.Writer, args []string) {
	switch args[0] {
	case "help":
		fmt.Fprint(w, helpText)
	case "state":
		s.printHALState(w)
	case "dump":
		s.control(ctx, w, "gpiochip", "soc", "dump", nil)
	case "get":
		if len(args) != 3 {
			fmt.Fprintln(w, "usage: get <kind> <name>")
			return
		}
		s.control(ctx, w, args[1], args[2], "get", nil)
	case "toggle":
		if len(args) != 3 {
			fmt.Fprintln(w, "usage: toggle <kind> <name>")
			return
		}
		s.control(ctx, w, args[1], args[2], "toggle", nil)
	case "read":
		if len(args) != 3 {
			fmt.Fprintln(w, "usage: read <kind> <name>")
			return
		}
		s.control(ctx, w, args[1], args[2], "read_now", nil)
	case "set":
		if len(args) != 4 {
			fmt.Fprintln(w, "usage: set <kind> <name> <0|1>")
			return
		}
		lvl, err := strconv.Atoi(args[3])
		if err != nil {
			fmt.Fprintln(w, "bad level:", args[3])
			return
		}
		s.control(ctx, w, args[1], args[2], "set", map[string]any{"level": lvl})
	case "rate":
		if len(args) != 4 {
			fmt.Fprintln(w, "usage: rate <kind> <name> <period_ms>")
			return
		}
		ms, err := strconv.Atoi(args[3])
		if err != nil {
			fmt.Fprintln(w, "bad period:", args[3])
			return
		}
		s.control(ctx, w, args[1], args[2], "set_rate", map[string]any{"period_ms": ms})
	case "call":
		if len(args) != 4 && len(args) != 5 {
			fmt.Fprintln(w, "usage: call <kind> <name> <method> [json]")
			return
		}
		var payload any
		if len(args) == 5 {
			if err := json.Unmarshal([]byte(args[4]), &payload); err != nil {
				fmt.Fprintln(w, "bad payload:", err.Error())
				return
			}
		}
		s.control(ctx, w, args[1], args[2], args[3], payload)
	default:
		fmt.Fprintln(w, "unknown command:", args[0], "(try help)")
	}
}

// control performs one capability control request and renders the reply.
func (s *Service) control(ctx context.Context, w io.Writer, kind, name, method string, payload any) {
	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	topic := bus.Topic{"hal", "capability", kind, name, "control", method}
	rep, err := s.conn.RequestWait(rctx, s.conn.NewMessage(topic, payload, false))
	if err != nil {
		fmt.Fprintln(w, "request failed:", err.Error())
		return
	}
	m, ok := rep.Payload.(map[string]any)
	if !ok {
		fmt.Fprintf(w, "reply: %v\n", rep.Payload)
		return
	}
	renderReply(w, m)
}

func renderReply(w io.Writer, rep map[string]any) {
	if rep["ok"] != true {
		fmt.Fprintf(w, "error %v %v\n", rep["error"], rep["detail"])
		return
	}
	if d, ok := rep["dump"].(string); ok {
		fmt.Fprint(w, d)
		return
	}
	rest := make(map[string]any, len(rep))
	for k, v := range rep {
		if k != "ok" {
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		fmt.Fprintln(w, "ok")
		return
	}
	b, err := json.Marshal(rest)
	if err != nil {
		fmt.Fprintln(w, "ok (unprintable reply)")
		return
	}
	fmt.Fprintln(w, "ok "+string(b))
}

// printHALState reads the retained hal/state document.
func (s *Service) printHALState(w io.Writer) {
	sub := s.conn.Subscribe(bus.Topic{"hal", "state"})
	defer s.conn.Unsubscribe(sub)

	select {
	case m := <-sub.Channel():
		b, err := json.Marshal(m.Payload)
		if err != nil {
			fmt.Fprintf(w, "%v\n", m.Payload)
			return
		}
		fmt.Fprintln(w, string(b))
	case <-time.After(200 * time.Millisecond):
		fmt.Fprintln(w, "no hal state")
	}
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  timex.NowMs(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, payload, true))
}

func (s *Service) publishListening(addr string) {
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, map[string]any{
		"level":  "up",
		"status": "listening",
		"addr":   addr,
		"ts_ms":  timex.NowMs(),
	}, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
