package domain

import "time"

type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnStatus describe el estado del turno activo de una sesion.
type TurnStatus string

const (
	StatusIdle      TurnStatus = "idle"
	StatusThinking  TurnStatus = "thinking"
	StatusStreaming TurnStatus = "streaming"
	StatusError     TurnStatus = "error"
)

// Busy indica si la sesion tiene un turno en curso y no acepta otro envio.
func (s TurnStatus) Busy() bool {
	return s == StatusThinking || s == StatusStreaming
}
