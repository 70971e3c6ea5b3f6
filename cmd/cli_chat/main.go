package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"grounded-chat/internal/agent"
	"grounded-chat/internal/config"
	"grounded-chat/internal/domain"
	"grounded-chat/internal/repository"
	"grounded-chat/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	agentClient, err := agent.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiThinkingBudget)
	if err != nil {
		log.Fatal(err)
	}

	sessionRepo := repository.NewMemorySessionRepository()
	attachmentSvc := service.NewAttachmentService()
	conversationSvc := service.NewConversationService(logger, sessionRepo, agentClient, attachmentSvc)

	session, err := conversationSvc.StartSession(ctx)
	if err != nil {
		log.Fatal(err)
	}

	transcript := &domain.Transcript{}
	printGreeting(ctx, conversationSvc, transcript, session.ID)

	fmt.Println("Comandos: /attach <archivo>, /detach, /reset, salir")
	for {
		fmt.Print("Tu > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "salir") || strings.EqualFold(line, "exit"):
			fmt.Println("Saliendo del chat...")
			return
		case line == "/reset":
			session, err = conversationSvc.Reset(ctx, session.ID)
			if err != nil {
				fmt.Printf("error reiniciando sesion: %v\n", err)
				continue
			}
			transcript = &domain.Transcript{}
			fmt.Println("Sesion reiniciada.")
			printGreeting(ctx, conversationSvc, transcript, session.ID)
		case strings.HasPrefix(line, "/attach "):
			attachFlow(attachmentSvc, session.ID, strings.TrimSpace(strings.TrimPrefix(line, "/attach ")))
		case line == "/detach":
			attachmentSvc.Clear(session.ID)
			fmt.Println("Adjunto descartado.")
		default:
			submitTurn(ctx, conversationSvc, transcript, session.ID, line)
		}
	}
}

// printGreeting muestra el saludo inicial de la sesion recien creada.
func printGreeting(ctx context.Context, svc *service.ConversationService, transcript *domain.Transcript, sessionID string) {
	messages, err := svc.History(ctx, sessionID)
	if err != nil || len(messages) == 0 {
		return
	}
	for _, m := range messages {
		transcript.Apply(m)
	}
	fmt.Printf("Agente > %s\n", messages[len(messages)-1].Content)
}

// attachFlow valida y deja en espera una imagen para el proximo mensaje.
func attachFlow(attachments *service.AttachmentService, sessionID, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("no se pudo leer el archivo: %v\n", err)
		return
	}

	att, err := attachments.Encode(mime.TypeByExtension(filepath.Ext(path)), data)
	switch {
	case errors.Is(err, service.ErrAttachmentTooLarge):
		fmt.Println("El archivo supera el limite de 5 MiB; se descarta la seleccion.")
		return
	case errors.Is(err, service.ErrUnsupportedMediaType):
		fmt.Println("Solo se aceptan imagenes como adjunto.")
		return
	case err != nil:
		fmt.Printf("error codificando adjunto: %v\n", err)
		return
	}

	attachments.Stage(sessionID, att)
	fmt.Printf("Adjunto listo (%s). Se enviara con el proximo mensaje.\n", att.MimeType)
}

// submitTurn envia el turno e imprime el texto en streaming y las fuentes.
func submitTurn(ctx context.Context, svc *service.ConversationService, transcript *domain.Transcript, sessionID, text string) {
	printed := 0
	fmt.Print("Agente > ")
	final, err := svc.SubmitTurn(ctx, sessionID, text, func(m domain.Message) {
		transcript.Apply(m)
		fmt.Print(m.Content[printed:])
		printed = len(m.Content)
	})
	if err != nil {
		transcript.Apply(final)
		fmt.Printf("\n[%s]\n", final.Content)
		return
	}

	transcript.Apply(final)
	fmt.Println()
	if len(final.Citations) > 0 {
		fmt.Println("Fuentes:")
		for _, c := range final.Citations {
			if c.Title != "" {
				fmt.Printf("- %s (%s)\n", c.Title, c.URI)
			} else {
				fmt.Printf("- %s\n", c.URI)
			}
		}
	}
}
