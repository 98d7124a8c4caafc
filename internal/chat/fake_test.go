package chat

import (
	"context"
	"errors"
	"sync"

	"gemini-chat/internal/models"
	"gemini-chat/internal/services"
)

type fakeReply struct {
	text string
	err  error
}

// fakeSession answers from a queue of replies. When gate is set, SendMessage
// signals started and then waits for gate before answering.
type fakeSession struct {
	mu      sync.Mutex
	replies []fakeReply
	sent    []string
	started chan struct{}
	gate    chan struct{}
}

func (s *fakeSession) SendMessage(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, text)
	started, gate := s.started, s.gate
	s.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *fakeSession) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeClient struct {
	mu       sync.Mutex
	session  *fakeSession
	startErr error
	params   []models.GenerationParams
	closed   bool
}

func (c *fakeClient) StartChat(ctx context.Context, params models.GenerationParams) (services.ChatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = append(c.params, params)
	if c.startErr != nil {
		return nil, c.startErr
	}
	return c.session, nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeProvider hands out the queued clients in order.
type fakeProvider struct {
	mu      sync.Mutex
	clients []*fakeClient
	errs    []error
	keys    []string
	calls   int
}

func (p *fakeProvider) Factory() services.ClientFactory {
	return func(ctx context.Context, apiKey string) (services.ChatClient, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		i := p.calls
		p.calls++
		p.keys = append(p.keys, apiKey)
		if i < len(p.errs) && p.errs[i] != nil {
			return nil, p.errs[i]
		}
		if i >= len(p.clients) {
			return nil, errors.New("no client queued")
		}
		return p.clients[i], nil
	}
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newFakeClient(replies ...fakeReply) *fakeClient {
	return &fakeClient{session: &fakeSession{replies: replies}}
}
