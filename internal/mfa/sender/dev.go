package sender

import (
	"context"
	"sync"

	"account-security-plane/internal/mfa/domain"
)

// DevSender is an in-memory sender used only when dev code mode is enabled.
// Instead of dispatching the code it holds it for retrieval by the dev
// endpoint. Not used in production.
type DevSender struct {
	mu    sync.RWMutex
	codes map[string]string
}

// NewDevSender returns a new in-memory dev sender.
func NewDevSender() *DevSender {
	return &DevSender{codes: make(map[string]string)}
}

// SendCode records code for destination instead of dispatching it.
func (s *DevSender) SendCode(ctx context.Context, method domain.Method, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[destination] = code
	return nil
}

// LastCode returns the most recent code recorded for destination.
func (s *DevSender) LastCode(destination string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.codes[destination]
	return code, ok
}
