package repository

import (
	"context"
	"sync"

	"grounded-chat/internal/domain"
)

// SessionRepository define el almacenamiento de sesiones y sus mensajes.
type SessionRepository interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetHistory(ctx context.Context, sessionID string) ([]domain.Message, error)
	AddMessage(ctx context.Context, sessionID string, msg domain.Message) error
	ClearSession(ctx context.Context, sessionID string) error
}

// MemorySessionRepository guarda las sesiones en memoria, sin persistencia.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Message
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string][]domain.Message),
	}
}

func (r *MemorySessionRepository) CreateSession(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; !exists {
		r.sessions[session.ID] = []domain.Message{}
	}
	return nil
}

// GetHistory devuelve los mensajes en orden de insercion; una sesion
// desconocida se trata como vacia, nunca como error.
func (r *MemorySessionRepository) GetHistory(_ context.Context, sessionID string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.sessions[sessionID]
	out := make([]domain.Message, len(stored))
	copy(out, stored)
	return out, nil
}

// AddMessage agrega al final de la secuencia; si la sesion no existe la crea
// implicitamente con este unico mensaje.
func (r *MemorySessionRepository) AddMessage(_ context.Context, sessionID string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = append(r.sessions[sessionID], msg)
	return nil
}

func (r *MemorySessionRepository) ClearSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}
