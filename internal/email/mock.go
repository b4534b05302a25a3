package email

import (
	"context"
	"fmt"
	"sync"
)

// MockTransport is a Transport double for tests.
// It records every message handed to Send and lets tests override behavior.
type MockTransport struct {
	mu          sync.Mutex
	VerifyFunc  func(ctx context.Context) error
	SendFunc    func(ctx context.Context, msg *Message) (*SendInfo, error)
	sent        []Message
	verifyCalls int
}

// NewMockTransport creates a mock transport that verifies and accepts everything.
func NewMockTransport() *MockTransport {
	m := &MockTransport{}
	m.VerifyFunc = func(_ context.Context) error {
		return nil
	}
	m.SendFunc = func(_ context.Context, msg *Message) (*SendInfo, error) {
		m.mu.Lock()
		n := len(m.sent)
		m.mu.Unlock()
		return &SendInfo{
			MessageID: fmt.Sprintf("<mock-%d@example.com>", n),
			Accepted:  []string{msg.To},
			Rejected:  []string{},
			Response:  "250 OK",
		}, nil
	}
	return m
}

// Verify implements Transport.Verify
func (m *MockTransport) Verify(ctx context.Context) error {
	m.mu.Lock()
	m.verifyCalls++
	m.mu.Unlock()
	return m.VerifyFunc(ctx)
}

// Send implements Transport.Send
func (m *MockTransport) Send(ctx context.Context, msg *Message) (*SendInfo, error) {
	info, err := m.SendFunc(ctx, msg)
	m.mu.Lock()
	m.sent = append(m.sent, *msg)
	m.mu.Unlock()
	return info, err
}

// SentMessages returns a copy of all messages passed to Send.
func (m *MockTransport) SentMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]Message, len(m.sent))
	copy(msgs, m.sent)
	return msgs
}

// VerifyCalls returns how many times Verify was called.
func (m *MockTransport) VerifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyCalls
}

// Reset clears recorded messages and counters. Useful for test cleanup.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.verifyCalls = 0
}

var _ Transport = (*MockTransport)(nil)
