package mtproto

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/gotd/td/session"
)

// stringSession keeps the MTProto auth state in memory as a base64 string so
// the engine can persist it alongside the account record and prime a new
// client with it after a restart.
type stringSession struct {
	mu       sync.Mutex
	material string
}

func newStringSession(material string) *stringSession {
	return &stringSession{material: material}
}

func (s *stringSession) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.material == "" {
		return nil, session.ErrNotFound
	}
	data, err := base64.StdEncoding.DecodeString(s.material)
	if err != nil {
		return nil, session.ErrNotFound
	}
	return data, nil
}

func (s *stringSession) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.material = base64.StdEncoding.EncodeToString(data)
	return nil
}

func (s *stringSession) Material() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.material
}
