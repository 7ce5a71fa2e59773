package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portfolio/api/internal/session"
)

type memSessions struct {
	sessions map[string]session.ChatSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]session.ChatSession)}
}

func (m *memSessions) GetChatSession(ctx context.Context, chatID string) (session.ChatSession, error) {
	return m.sessions[chatID], nil
}

func (m *memSessions) SaveChatSession(ctx context.Context, chatID string, chat session.ChatSession) error {
	m.sessions[chatID] = chat
	return nil
}

type scriptedProvider struct {
	tokens        []string
	interactionID string
	err           error

	gotMessage  string
	gotPrevious string
}

func (p *scriptedProvider) Stream(ctx context.Context, message, previousInteractionID string, onToken func(string)) (string, string, error) {
	p.gotMessage = message
	p.gotPrevious = previousInteractionID
	if p.err != nil {
		return "", "", p.err
	}
	var full strings.Builder
	for _, tok := range p.tokens {
		full.WriteString(tok)
		onToken(tok)
	}
	return full.String(), p.interactionID, nil
}

func TestStreamAppendsHistoryAndSavesInteractionID(t *testing.T) {
	sessions := newMemSessions()
	provider := &scriptedProvider{tokens: []string{"Hel", "lo"}, interactionID: "int_1"}
	svc := NewService(provider, sessions)

	var streamed []string
	err := svc.Stream(context.Background(), "chat-1", "hi there", func(tok string) {
		streamed = append(streamed, tok)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if strings.Join(streamed, "") != "Hello" {
		t.Errorf("streamed %q", strings.Join(streamed, ""))
	}

	saved := sessions.sessions["chat-1"]
	if saved.InteractionID != "int_1" {
		t.Errorf("InteractionID = %q", saved.InteractionID)
	}
	if len(saved.History) != 2 {
		t.Fatalf("len(History) = %d", len(saved.History))
	}
	if saved.History[0].Role != "user" || saved.History[0].Message != "hi there" {
		t.Errorf("History[0] = %+v", saved.History[0])
	}
	if saved.History[1].Role != "ai" || saved.History[1].Message != "Hello" {
		t.Errorf("History[1] = %+v", saved.History[1])
	}
}

func TestStreamContinuesPreviousInteraction(t *testing.T) {
	sessions := newMemSessions()
	sessions.sessions["chat-1"] = session.ChatSession{InteractionID: "int_0"}
	provider := &scriptedProvider{tokens: []string{"ok"}, interactionID: "int_1"}
	svc := NewService(provider, sessions)

	if err := svc.Stream(context.Background(), "chat-1", "again", func(string) {}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if provider.gotPrevious != "int_0" {
		t.Errorf("previous interaction id = %q", provider.gotPrevious)
	}
}

func TestStreamProviderErrorDoesNotSave(t *testing.T) {
	sessions := newMemSessions()
	provider := &scriptedProvider{err: errors.New("upstream down")}
	svc := NewService(provider, sessions)

	err := svc.Stream(context.Background(), "chat-1", "hi", func(string) {})
	if err == nil {
		t.Fatal("expected error from provider")
	}
	if _, ok := sessions.sessions["chat-1"]; ok {
		t.Error("session saved despite provider error")
	}
}

func TestStreamRejectsEmptyInput(t *testing.T) {
	svc := NewService(&scriptedProvider{}, newMemSessions())
	if err := svc.Stream(context.Background(), "", "hi", nil); err == nil {
		t.Error("expected error for empty chatId")
	}
	if err := svc.Stream(context.Background(), "chat-1", "   ", nil); err == nil {
		t.Error("expected error for blank message")
	}
}

func TestGeminiProviderParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interactions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"event_type\":\"content.delta\",\"delta\":{\"type\":\"text\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "data: {\"event_type\":\"content.delta\",\"delta\":{\"type\":\"text\",\"text\":\"there\"}}\n\n")
		fmt.Fprint(w, "data: {\"event_type\":\"interaction.complete\",\"interaction\":{\"id\":\"int_42\"}}\n\n")
	}))
	defer srv.Close()

	provider := NewGeminiProvider(Config{APIKey: "test-key", Model: "gemini-test"})
	provider.base = srv.URL

	var tokens []string
	text, id, err := provider.Stream(context.Background(), "hello", "", func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if text != "Hi there" {
		t.Errorf("text = %q", text)
	}
	if id != "int_42" {
		t.Errorf("interaction id = %q", id)
	}
	if len(tokens) != 2 {
		t.Errorf("got %d tokens", len(tokens))
	}
}

func TestGeminiProviderRequiresKey(t *testing.T) {
	provider := NewGeminiProvider(Config{})
	if _, _, err := provider.Stream(context.Background(), "hi", "", nil); err == nil {
		t.Error("expected error when not configured")
	}
}
