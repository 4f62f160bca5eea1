package kafka

import (
	"context"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// session is the connection state shared by consumers and producers.
type session struct {
	role   Role
	client *kgo.Client

	connectMu sync.Mutex // serializes handshakes

	mu        sync.Mutex
	connected bool
	metadata  kadm.Metadata
	pending   []string // consume topics held back until connected

	closeOnce sync.Once
}

// Client returns the underlying franz-go client.
func (s *session) Client() *kgo.Client {
	return s.client
}

// Connected reports whether the handshake has completed.
func (s *session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Metadata returns the metadata fetched by the handshake. It is empty when
// the handshake only pinged the cluster or has not run.
func (s *session) Metadata() kadm.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// Connect performs the handshake. It is a no-op once connected. A failed
// handshake leaves the client open; the caller still owns it.
func (s *session) Connect(ctx context.Context, meta *MetadataConfig) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if s.Connected() {
		return nil
	}

	md, err := handshake(ctx, s.client, meta)
	if err != nil {
		return &ConnectError{Role: s.role, Err: err}
	}

	s.mu.Lock()
	s.metadata = md
	s.connected = true
	topics := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(topics) > 0 {
		s.client.AddConsumeTopics(topics...)
	}
	return nil
}

// Close closes the underlying client. It is safe to call more than once.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.client.Close()
		}
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
	})
}

// Consumer is the consumer role handle.
type Consumer struct {
	session
}

// Subscribe adds topics to consume from. Before the handshake the topics are
// only recorded, so an unconnected consumer never fetches metadata or joins
// its group.
func (c *Consumer) Subscribe(topics ...string) {
	topics = compactTopics(topics)
	if len(topics) == 0 {
		return
	}

	c.mu.Lock()
	if !c.connected {
		c.pending = append(c.pending, topics...)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.client.AddConsumeTopics(topics...)
}

// Topics returns the topics the consumer consumes, or will consume once
// connected.
func (c *Consumer) Topics() []string {
	c.mu.Lock()
	if !c.connected {
		defer c.mu.Unlock()
		return append([]string(nil), c.pending...)
	}
	c.mu.Unlock()
	return c.client.GetConsumeTopics()
}

// Producer is the producer role handle.
type Producer struct {
	session
}

// AdminClient is the admin role handle.
type AdminClient struct {
	admin     *kadm.Client
	closeOnce sync.Once
}

// Client returns the underlying kadm client.
func (a *AdminClient) Client() *kadm.Client {
	return a.admin
}

// Close closes the admin client and the franz-go client it wraps.
func (a *AdminClient) Close() {
	a.closeOnce.Do(func() {
		if a.admin != nil {
			a.admin.Close()
		}
	})
}
