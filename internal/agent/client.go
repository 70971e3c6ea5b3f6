package agent

import (
	"context"

	"grounded-chat/internal/domain"
)

// Snapshot es el estado acumulado de una respuesta en streaming: el texto
// completo hasta el momento, las citas deduplicadas y un error terminal si el
// stream aborto. Nunca contiene deltas.
type Snapshot struct {
	Text      string
	Citations []domain.GroundingChunk
	Err       error
}

// Client define el cliente del agente generativo con busqueda web. SendTurn
// devuelve una secuencia perezosa y finita de snapshots; el canal se cierra al
// terminar el stream y no es reiniciable.
type Client interface {
	SendTurn(ctx context.Context, sessionID, text string, att *domain.Attachment) (<-chan Snapshot, error)
	Reset(sessionID string)
}
