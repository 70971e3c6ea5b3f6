package agent

import (
	"context"

	"grounded-chat/internal/domain"
)

// MockClient permite tests sin llamar al proveedor real.
type MockClient struct {
	Snapshots []Snapshot
	SendErr   error

	LastSessionID  string
	LastText       string
	LastAttachment *domain.Attachment
	ResetCalls     []string
}

func (m *MockClient) SendTurn(_ context.Context, sessionID, text string, att *domain.Attachment) (<-chan Snapshot, error) {
	m.LastSessionID = sessionID
	m.LastText = text
	m.LastAttachment = att

	if m.SendErr != nil {
		return nil, m.SendErr
	}

	out := make(chan Snapshot, len(m.Snapshots))
	for _, s := range m.Snapshots {
		out <- s
	}
	close(out)
	return out, nil
}

func (m *MockClient) Reset(sessionID string) {
	m.ResetCalls = append(m.ResetCalls, sessionID)
}
