package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"grounded-chat/internal/agent"
	"grounded-chat/internal/domain"
	"grounded-chat/internal/repository"
)

// Textos fijos visibles para el usuario.
const (
	GreetingText = "Hello! I'm your research assistant. Ask me anything, or share an image, and I'll search the web for grounded answers."
	ErrorNotice  = "Something went wrong while generating the response. Please try again."
)

var (
	ErrConversationNotConfigured = errors.New("conversation service not configured")
	ErrEmptyTurn                 = errors.New("turn requires text or an attachment")
	ErrTurnInProgress            = errors.New("turn already in progress")
	ErrEmptyStream               = errors.New("agent produced no response")
)

// SnapshotFunc recibe cada version del mensaje del asistente en curso. Todas
// las versiones de un mismo turno comparten el ID del mensaje.
type SnapshotFunc func(domain.Message)

// ConversationService orquesta un turno completo: persiste el mensaje del
// usuario, consume el stream del agente y persiste la respuesta final o el
// aviso de error.
type ConversationService struct {
	logger      *zap.Logger
	sessions    repository.SessionRepository
	agent       agent.Client
	attachments *AttachmentService

	mu     sync.Mutex
	status map[string]domain.TurnStatus
}

func NewConversationService(
	logger *zap.Logger,
	sessions repository.SessionRepository,
	agentClient agent.Client,
	attachments *AttachmentService,
) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		logger:      logger,
		sessions:    sessions,
		agent:       agentClient,
		attachments: attachments,
		status:      make(map[string]domain.TurnStatus),
	}
}

// StartSession crea una sesion nueva con el saludo inicial del asistente.
func (s *ConversationService) StartSession(ctx context.Context) (domain.Session, error) {
	if s == nil || s.sessions == nil {
		return domain.Session{}, ErrConversationNotConfigured
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	greeting := domain.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Content:   GreetingText,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.AddMessage(ctx, session.ID, greeting); err != nil {
		return domain.Session{}, fmt.Errorf("persist greeting: %w", err)
	}
	return session, nil
}

// History devuelve el transcript persistido de la sesion.
func (s *ConversationService) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if s == nil || s.sessions == nil {
		return nil, ErrConversationNotConfigured
	}
	return s.sessions.GetHistory(ctx, sessionID)
}

// Status devuelve el estado del turno activo de la sesion.
func (s *ConversationService) Status(sessionID string) domain.TurnStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[sessionID]; ok {
		return st
	}
	return domain.StatusIdle
}

func (s *ConversationService) setStatus(sessionID string, st domain.TurnStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[sessionID] = st
}

// SubmitTurn ejecuta un turno: valida la entrada, persiste el mensaje del
// usuario consumiendo el adjunto en espera, y pliega el stream del agente en
// versiones del mensaje del asistente via onSnapshot. Devuelve el mensaje
// final persistido; ante una falla devuelve el mensaje de sistema junto con
// la causa.
func (s *ConversationService) SubmitTurn(ctx context.Context, sessionID, text string, onSnapshot SnapshotFunc) (domain.Message, error) {
	if s == nil || s.sessions == nil || s.agent == nil {
		return domain.Message{}, ErrConversationNotConfigured
	}

	text = strings.TrimSpace(text)
	hasAttachment := false
	if s.attachments != nil {
		_, hasAttachment = s.attachments.Staged(sessionID)
	}
	if text == "" && !hasAttachment {
		return domain.Message{}, ErrEmptyTurn
	}

	// Reserva el turno: mientras este thinking/streaming no se acepta otro.
	s.mu.Lock()
	if s.status[sessionID].Busy() {
		s.mu.Unlock()
		return domain.Message{}, ErrTurnInProgress
	}
	s.status[sessionID] = domain.StatusThinking
	s.mu.Unlock()

	var att *domain.Attachment
	if s.attachments != nil {
		att = s.attachments.Take(sessionID)
	}

	userMsg := domain.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Role:       domain.RoleUser,
		Content:    text,
		Attachment: att,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.sessions.AddMessage(ctx, sessionID, userMsg); err != nil {
		return s.failTurn(ctx, sessionID, fmt.Errorf("persist user message: %w", err))
	}

	stream, err := s.agent.SendTurn(ctx, sessionID, text, att)
	if err != nil {
		return s.failTurn(ctx, sessionID, err)
	}

	assistantID := uuid.NewString()
	var inProgress domain.Message
	streaming := false
	for snap := range stream {
		if snap.Err != nil {
			return s.failTurn(ctx, sessionID, snap.Err)
		}
		if !streaming {
			s.setStatus(sessionID, domain.StatusStreaming)
			streaming = true
		}
		inProgress = domain.Message{
			ID:        assistantID,
			SessionID: sessionID,
			Role:      domain.RoleAssistant,
			Content:   snap.Text,
			Citations: snap.Citations,
			CreatedAt: time.Now().UTC(),
		}
		if onSnapshot != nil {
			onSnapshot(inProgress)
		}
	}
	if !streaming {
		return s.failTurn(ctx, sessionID, ErrEmptyStream)
	}

	if err := s.sessions.AddMessage(ctx, sessionID, inProgress); err != nil {
		return s.failTurn(ctx, sessionID, fmt.Errorf("persist assistant message: %w", err))
	}
	s.setStatus(sessionID, domain.StatusIdle)
	return inProgress, nil
}

// Reset descarta la sesion, su handle del agente y su adjunto en espera, y
// crea inmediatamente una sesion nueva con el saludo.
func (s *ConversationService) Reset(ctx context.Context, sessionID string) (domain.Session, error) {
	if s == nil || s.sessions == nil || s.agent == nil {
		return domain.Session{}, ErrConversationNotConfigured
	}

	if err := s.sessions.ClearSession(ctx, sessionID); err != nil {
		return domain.Session{}, fmt.Errorf("clear session: %w", err)
	}
	s.agent.Reset(sessionID)
	if s.attachments != nil {
		s.attachments.Clear(sessionID)
	}
	s.mu.Lock()
	delete(s.status, sessionID)
	s.mu.Unlock()

	return s.StartSession(ctx)
}

// failTurn convierte cualquier falla del turno en un unico mensaje de sistema
// persistido con el aviso fijo; el texto parcial en curso se descarta.
func (s *ConversationService) failTurn(ctx context.Context, sessionID string, cause error) (domain.Message, error) {
	s.logger.Error("turn failed", zap.String("session_id", sessionID), zap.Error(cause))

	sysMsg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      domain.RoleSystem,
		Content:   ErrorNotice,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.AddMessage(ctx, sessionID, sysMsg); err != nil {
		s.logger.Error("persist error notice", zap.Error(err), zap.String("session_id", sessionID))
	}
	s.setStatus(sessionID, domain.StatusError)
	return sysMsg, cause
}
