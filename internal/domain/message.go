package domain

import "time"

// Roles de los participantes del transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// GroundingChunk referencia una fuente web que el agente uso para responder.
type GroundingChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Attachment es la imagen adjunta a un mensaje, ya codificada como base64 puro.
type Attachment struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

type Message struct {
	ID         string           `json:"id"`
	SessionID  string           `json:"session_id,omitempty"`
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Attachment *Attachment      `json:"attachment,omitempty"`
	Citations  []GroundingChunk `json:"citations,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
