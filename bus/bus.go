// bus.go
package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (typically strings, sometimes
// ints). The tokens "+" and "#" are wildcards in subscription patterns:
// "+" matches exactly one level, "#" matches the rest of the topic
// (including zero levels) and must be the final token. Published topics
// must not contain wildcard tokens.
type Topic []any

// T builds a Topic and validates that every token is usable as a trie key.
// Non-comparable tokens (slices, maps, funcs) panic here rather than later
// inside the bus.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic(fmt.Sprintf("bus: topic token %#v is not comparable", tok))
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }

// Equal reports token-wise equality.
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the topic in "a/b/c" form for logs.
func (t Topic) String() string {
	s := ""
	for i, tok := range t {
		if i > 0 {
			s += "/"
		}
		s += fmt.Sprint(tok)
	}
	return s
}

const (
	wildOne = "+"
	wildAll = "#"
)

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Topic() Topic             { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Tries
// -----------------------------------------------------------------------------

// patNode holds subscriptions keyed by their pattern path (wildcards are
// ordinary keys here; matching happens at publish time).
type patNode struct {
	children map[any]*patNode
	subs     []*Subscription
}

// retNode holds retained messages keyed by their exact topic path.
type retNode struct {
	children map[any]*retNode
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.RWMutex
	pats     *patNode
	rets     *retNode
	qLen     int
	replySeq atomic.Uint64
}

// NewBus creates a bus. queueLen is the per-subscription channel depth;
// when a subscriber lags beyond it, its oldest queued message is dropped.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		pats: &patNode{},
		rets: &retNode{},
		qLen: queueLen,
	}
}

// NewMessage builds a message for topic. retained messages replace the
// previously retained one on that exact topic; a retained message with a
// nil payload clears it.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (b *Bus) publish(msg *Message) {
	if msg.Retained {
		b.mu.Lock()
		b.storeRetained(msg)
		b.matchAndDeliver(b.pats, msg.Topic, msg)
		b.mu.Unlock()
		return
	}
	b.mu.RLock()
	b.matchAndDeliver(b.pats, msg.Topic, msg)
	b.mu.RUnlock()
}

// matchAndDeliver walks the pattern trie against a concrete topic.
func (b *Bus) matchAndDeliver(n *patNode, rest Topic, msg *Message) {
	// "#" matches the remainder, including zero levels.
	if all, ok := n.children[wildAll]; ok {
		deliverAll(all.subs, msg)
	}
	if len(rest) == 0 {
		deliverAll(n.subs, msg)
		return
	}
	if child, ok := n.children[rest[0]]; ok {
		b.matchAndDeliver(child, rest[1:], msg)
	}
	if child, ok := n.children[wildOne]; ok {
		b.matchAndDeliver(child, rest[1:], msg)
	}
}

func deliverAll(subs []*Subscription, msg *Message) {
	for _, sub := range subs {
		deliver(sub, msg)
	}
}

// deliver never blocks; a full queue loses its oldest entry.
func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- msg:
	default:
	}
}

func (b *Bus) storeRetained(msg *Message) {
	if msg.Payload == nil {
		b.clearRetained(msg.Topic)
		return
	}
	n := b.rets
	for _, tok := range msg.Topic {
		if n.children == nil {
			n.children = make(map[any]*retNode)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &retNode{}
			n.children[tok] = child
		}
		n = child
	}
	n.retained = msg
}

func (b *Bus) clearRetained(topic Topic) {
	n := b.rets
	stack := make([]*retNode, 0, len(topic))
	for _, tok := range topic {
		child, ok := n.children[tok]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}
	n.retained = nil
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[topic[i]]
		if child.retained == nil && len(child.children) == 0 {
			delete(parent.children, topic[i])
		} else {
			break
		}
	}
}

// collectRetained pushes every retained message matching pattern into sub.
func collectRetained(n *retNode, pattern Topic, sub *Subscription) {
	if len(pattern) == 0 {
		if n.retained != nil {
			deliver(sub, n.retained)
		}
		return
	}
	switch pattern[0] {
	case wildAll:
		collectSubtree(n, sub)
	case wildOne:
		for _, child := range n.children {
			collectRetained(child, pattern[1:], sub)
		}
	default:
		if child, ok := n.children[pattern[0]]; ok {
			collectRetained(child, pattern[1:], sub)
		}
	}
}

func collectSubtree(n *retNode, sub *Subscription) {
	if n.retained != nil {
		deliver(sub, n.retained)
	}
	for _, child := range n.children {
		collectSubtree(child, sub)
	}
}

func (b *Bus) subscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.pats
	for _, tok := range sub.pattern {
		if n.children == nil {
			n.children = make(map[any]*patNode)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &patNode{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	collectRetained(b.rets, sub.pattern, sub)
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.pats
	stack := make([]*patNode, 0, len(sub.pattern))
	for _, tok := range sub.pattern {
		child, ok := n.children[tok]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	for i := len(sub.pattern) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[sub.pattern[i]]
		if len(child.subs) == 0 && len(child.children) == 0 {
			delete(parent.children, sub.pattern[i])
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a connection bound to this bus. id names the
// connection in reply topics and diagnostics.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) {
	c.bus.publish(msg)
}

func (c *Connection) Subscribe(pattern Topic) *Subscription {
	sub := &Subscription{
		pattern: pattern,
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	c.bus.subscribe(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions owned by this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// ErrNoReplyTopic is returned by Reply for messages that were not requests.
var ErrNoReplyTopic = errors.New("bus: message has no reply topic")

// Request stamps msg with a fresh ReplyTo topic, subscribes to it and
// publishes the request. The caller owns the returned subscription and
// must Unsubscribe it when done.
func (c *Connection) Request(msg *Message) *Subscription {
	seq := c.bus.replySeq.Add(1)
	msg.ReplyTo = Topic{"$reply", c.id, int(seq)}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait performs Request and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply := <-sub.ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply publishes payload to the request's ReplyTo topic.
func (c *Connection) Reply(req *Message, payload any, retained bool) error {
	if len(req.ReplyTo) == 0 {
		return ErrNoReplyTopic
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
	return nil
}
