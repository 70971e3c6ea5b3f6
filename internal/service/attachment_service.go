package service

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"grounded-chat/internal/domain"
)

// MaxAttachmentBytes limita el tamano del archivo adjunto (5 MiB, inclusivo).
const MaxAttachmentBytes = 5 * 1024 * 1024

var (
	ErrAttachmentTooLarge   = errors.New("attachment exceeds size limit")
	ErrUnsupportedMediaType = errors.New("attachment media type not supported")
	ErrAttachmentInvalid    = errors.New("attachment payload invalid")
)

// AttachmentService valida y codifica adjuntos, y mantiene a lo sumo un
// adjunto en espera por sesion para el proximo turno.
type AttachmentService struct {
	mu     sync.Mutex
	staged map[string]domain.Attachment
}

func NewAttachmentService() *AttachmentService {
	return &AttachmentService{staged: make(map[string]domain.Attachment)}
}

// Encode valida el archivo contra el limite de tamano y el tipo de medio y lo
// transcodifica a base64 puro. Un rechazo no deja nada en espera.
func (s *AttachmentService) Encode(mimeType string, data []byte) (domain.Attachment, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.Attachment{}, ErrUnsupportedMediaType
	}
	if len(data) > MaxAttachmentBytes {
		return domain.Attachment{}, ErrAttachmentTooLarge
	}
	return domain.Attachment{
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	}, nil
}

// EncodeDataURI acepta un data URI del navegador (data:<mime>;base64,<payload>)
// y conserva solo el payload base64 junto al tipo de medio declarado.
func (s *AttachmentService) EncodeDataURI(uri string) (domain.Attachment, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return domain.Attachment{}, ErrAttachmentInvalid
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return domain.Attachment{}, ErrAttachmentInvalid
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Attachment{}, ErrAttachmentInvalid
	}
	return s.Encode(strings.TrimSuffix(meta, ";base64"), raw)
}

// Stage deja el adjunto en espera para el proximo turno; reemplaza cualquier
// adjunto anterior de la sesion.
func (s *AttachmentService) Stage(sessionID string, att domain.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[sessionID] = att
}

// Staged devuelve el adjunto en espera sin consumirlo.
func (s *AttachmentService) Staged(sessionID string) (domain.Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.staged[sessionID]
	return att, ok
}

// Take consume el adjunto en espera, si existe.
func (s *AttachmentService) Take(sessionID string) *domain.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.staged[sessionID]
	if !ok {
		return nil
	}
	delete(s.staged, sessionID)
	return &att
}

// Clear descarta el adjunto en espera de la sesion.
func (s *AttachmentService) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, sessionID)
}
