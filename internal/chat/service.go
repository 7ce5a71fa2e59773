// Package chat relays visitor messages to the Gemini interactions API
// and streams the response tokens back.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portfolio/api/internal/session"
)

const defaultProviderBase = "https://generativelanguage.googleapis.com/v1beta"

// Config holds provider configuration
type Config struct {
	APIKey string
	Model  string
}

// SessionStore persists conversations between requests.
type SessionStore interface {
	GetChatSession(ctx context.Context, chatID string) (session.ChatSession, error)
	SaveChatSession(ctx context.Context, chatID string, chat session.ChatSession) error
}

// Provider streams a model response for a message, invoking onToken for
// each text delta, and returns the full text plus the interaction id to
// continue the conversation with.
type Provider interface {
	Stream(ctx context.Context, message, previousInteractionID string, onToken func(string)) (text, interactionID string, err error)
}

// Service loads the session, relays the message, and saves the updated
// history.
type Service struct {
	provider Provider
	sessions SessionStore
}

func NewService(provider Provider, sessions SessionStore) *Service {
	return &Service{provider: provider, sessions: sessions}
}

// Stream relays one visitor message. Tokens are forwarded to onToken as
// they arrive; the session history and interaction id are saved after
// the response completes.
func (s *Service) Stream(ctx context.Context, chatID, message string, onToken func(string)) error {
	if chatID == "" || strings.TrimSpace(message) == "" {
		return errors.New("chatId and message are required")
	}

	sess, err := s.sessions.GetChatSession(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load chat session: %w", err)
	}

	sess.History = append(sess.History, session.ChatMessage{
		Role:      "user",
		Message:   message,
		Timestamp: time.Now().UTC(),
	})

	text, interactionID, err := s.provider.Stream(ctx, message, sess.InteractionID, onToken)
	if err != nil {
		return fmt.Errorf("stream response: %w", err)
	}

	sess.History = append(sess.History, session.ChatMessage{
		Role:      "ai",
		Message:   text,
		Timestamp: time.Now().UTC(),
	})
	if interactionID != "" {
		sess.InteractionID = interactionID
	}

	if err := s.sessions.SaveChatSession(ctx, chatID, sess); err != nil {
		return fmt.Errorf("save chat session: %w", err)
	}
	return nil
}

// History returns the stored conversation for a chat id.
func (s *Service) History(ctx context.Context, chatID string) ([]session.ChatMessage, error) {
	sess, err := s.sessions.GetChatSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// GeminiProvider implements Provider against the Gemini interactions
// endpoint over server-sent events.
type GeminiProvider struct {
	config Config
	client *http.Client
	base   string
}

func NewGeminiProvider(config Config) *GeminiProvider {
	return &GeminiProvider{
		config: config,
		client: &http.Client{Timeout: 2 * time.Minute},
		base:   defaultProviderBase,
	}
}

// IsConfigured returns true if an API key is present
func (p *GeminiProvider) IsConfigured() bool {
	return p.config.APIKey != ""
}

type interactionRequest struct {
	Model                 string `json:"model"`
	Input                 string `json:"input"`
	PreviousInteractionID string `json:"previous_interaction_id,omitempty"`
	Stream                bool   `json:"stream"`
}

type interactionEvent struct {
	EventType string `json:"event_type"`
	Delta     struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Interaction struct {
		ID string `json:"id"`
	} `json:"interaction"`
}

// Stream posts the message and parses the SSE event stream, forwarding
// content.delta text events and capturing the interaction id from
// interaction.complete.
func (p *GeminiProvider) Stream(ctx context.Context, message, previousInteractionID string, onToken func(string)) (string, string, error) {
	if !p.IsConfigured() {
		return "", "", errors.New("chat provider not configured")
	}

	payload, err := json.Marshal(interactionRequest{
		Model:                 p.config.Model,
		Input:                 message,
		PreviousInteractionID: previousInteractionID,
		Stream:                true,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/interactions", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var full strings.Builder
	var interactionID string

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var event interactionEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.EventType {
		case "content.delta":
			if event.Delta.Type == "text" && event.Delta.Text != "" {
				full.WriteString(event.Delta.Text)
				if onToken != nil {
					onToken(event.Delta.Text)
				}
			}
		case "interaction.complete":
			interactionID = event.Interaction.ID
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("read event stream: %w", err)
	}

	return full.String(), interactionID, nil
}
