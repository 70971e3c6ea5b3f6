package agent

import (
	"strings"

	"grounded-chat/internal/domain"
)

// turnAccumulator pliega los deltas del proveedor en snapshots acumulados.
// El texto solo crece por concatenacion y las citas se deduplican por URI
// durante todo el turno, conservando el titulo visto primero.
type turnAccumulator struct {
	text      strings.Builder
	seen      map[string]bool
	citations []domain.GroundingChunk
}

func newTurnAccumulator() *turnAccumulator {
	return &turnAccumulator{seen: make(map[string]bool)}
}

// Add incorpora un delta de texto y sus grounding chunks y devuelve el
// snapshot resultante.
func (a *turnAccumulator) Add(delta string, chunks []domain.GroundingChunk) Snapshot {
	a.text.WriteString(delta)
	for _, c := range chunks {
		if c.URI == "" || a.seen[c.URI] {
			continue
		}
		a.seen[c.URI] = true
		a.citations = append(a.citations, c)
	}
	return a.snapshot(nil)
}

// snapshot arma la vista acumulada; las citas solo se incluyen cuando hay al
// menos una recolectada.
func (a *turnAccumulator) snapshot(err error) Snapshot {
	s := Snapshot{Text: a.text.String(), Err: err}
	if len(a.citations) > 0 {
		s.Citations = append([]domain.GroundingChunk(nil), a.citations...)
	}
	return s
}
