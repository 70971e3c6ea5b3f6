package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"grounded-chat/internal/domain"
)

// systemInstruction fija la persona y el flujo de trabajo del agente.
const systemInstruction = `You are a meticulous research assistant. For every user query:
1. Break the question down and run web searches to gather current information.
2. Write your answer as a concise markdown report.
3. Flag the credibility of each source you rely on (official, reputable press, blog, forum, unknown).
4. Cite every claim that comes from a source.
If the user shares an image or document, first describe and extract what it contains, then research it.`

// defaultAttachmentPrompt se usa cuando el turno trae adjunto pero no texto.
const defaultAttachmentPrompt = "Analyze this document or image."

// GeminiClient implementa Client sobre la API de Gemini, cacheando un chat
// por sesion. A lo sumo existe un handle por identificador de sesion.
type GeminiClient struct {
	client         *genai.Client
	model          string
	thinkingBudget int32

	mu      sync.Mutex
	handles map[string]*genai.Chat
}

func NewGeminiClient(ctx context.Context, apiKey, model string, thinkingBudget int32) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		model:          model,
		thinkingBudget: thinkingBudget,
		handles:        make(map[string]*genai.Chat),
	}, nil
}

// getOrCreateHandle devuelve el chat cacheado de la sesion o crea uno nuevo
// con la configuracion fija del agente. Es idempotente.
func (g *GeminiClient) getOrCreateHandle(ctx context.Context, sessionID string) (*genai.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if chat, ok := g.handles[sessionID]; ok {
		return chat, nil
	}

	budget := g.thinkingBudget
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: &budget},
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	chat, err := g.client.Chats.Create(ctx, g.model, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat handle: %w", err)
	}
	g.handles[sessionID] = chat
	return chat, nil
}

// SendTurn arma el payload del turno y abre el stream de snapshots. Cualquier
// error del proveedor aborta la secuencia; no hay reintentos.
func (g *GeminiClient) SendTurn(ctx context.Context, sessionID, text string, att *domain.Attachment) (<-chan Snapshot, error) {
	chat, err := g.getOrCreateHandle(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	parts, err := buildParts(text, att)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 16)
	go func() {
		defer close(out)
		acc := newTurnAccumulator()
		for resp, err := range chat.SendMessageStream(ctx, parts...) {
			if err != nil {
				out <- acc.snapshot(fmt.Errorf("agent stream: %w", err))
				return
			}
			out <- acc.Add(resp.Text(), extractCitations(resp))
		}
	}()
	return out, nil
}

// Reset descarta el handle cacheado; la proxima llamada crea uno nuevo.
func (g *GeminiClient) Reset(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.handles, sessionID)
}

// buildParts construye el payload multimodal: texto plano, o texto mas imagen
// inline cuando hay adjunto.
func buildParts(text string, att *domain.Attachment) ([]genai.Part, error) {
	if att == nil {
		return []genai.Part{{Text: text}}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	if text == "" {
		text = defaultAttachmentPrompt
	}
	return []genai.Part{
		{Text: text},
		{InlineData: &genai.Blob{MIMEType: att.MimeType, Data: raw}},
	}, nil
}

// extractCitations recoge los grounding chunks web de una respuesta parcial.
func extractCitations(resp *genai.GenerateContentResponse) []domain.GroundingChunk {
	var out []domain.GroundingChunk
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, gc := range cand.GroundingMetadata.GroundingChunks {
			if gc == nil || gc.Web == nil || gc.Web.URI == "" {
				continue
			}
			out = append(out, domain.GroundingChunk{URI: gc.Web.URI, Title: gc.Web.Title})
		}
	}
	return out
}
