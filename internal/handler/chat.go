package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/dukerupert/reunite/internal/auth"
	"github.com/dukerupert/reunite/internal/model"
	"github.com/dukerupert/reunite/internal/store"
)

const (
	chatGreeting = "Hello! I'm your Reunite AI assistant. I can help you with finding lost items, reporting found items, understanding how to use the platform, and more. How can I assist you today?"
	chatApology  = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

	maxChatTurns         = 40
	maxChatConversations = 1000
)

// ChatHandler keeps one assistant conversation per browser session in
// memory. Conversations do not survive a restart.
type ChatHandler struct {
	base

	mu     sync.Mutex
	convos map[int64][]model.ChatTurn
}

func NewChatHandler(t *Templates, ss *store.SessionStore, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		base:   newBase(t, ss, logger),
		convos: make(map[int64][]model.ChatTurn),
	}
}

type ChatPage struct {
	PageData
	Turns []model.ChatTurn
}

func greeting() []model.ChatTurn {
	return []model.ChatTurn{{Role: "assistant", Content: chatGreeting}}
}

// conversation returns a copy of the session's turns.
func (h *ChatHandler) conversation(sessionID int64) []model.ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns, ok := h.convos[sessionID]
	if !ok {
		return greeting()
	}
	return append([]model.ChatTurn(nil), turns...)
}

func (h *ChatHandler) save(sessionID int64, turns []model.ChatTurn) {
	if len(turns) > maxChatTurns {
		turns = turns[len(turns)-maxChatTurns:]
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.convos[sessionID]; !ok && len(h.convos) >= maxChatConversations {
		for id := range h.convos {
			delete(h.convos, id)
			break
		}
	}
	h.convos[sessionID] = turns
}

func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	h.templates.Render(w, http.StatusOK, "chat.html", ChatPage{
		PageData: PageData{Title: "Assistant", User: user, Nav: "chat"},
		Turns:    h.conversation(auth.SessionID(r.Context())),
	})
}

// Send forwards the message with the conversation so far. A failed call
// still answers, with an apology.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionID(r.Context())
	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}
		h.templates.Render(w, http.StatusBadRequest, "chat.html", ChatPage{
			PageData: PageData{Title: "Assistant", User: user, Nav: "chat", Error: "Please enter a message."},
			Turns:    h.conversation(sessionID),
		})
		return
	}

	turns := append(h.conversation(sessionID), model.ChatTurn{Role: "user", Content: message})
	reply, err := auth.Client(r.Context()).Chat(r.Context(), message, turns)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("chat", "error", err)
		reply = chatApology
	}
	h.save(sessionID, append(turns, model.ChatTurn{Role: "assistant", Content: reply}))
	redirect(w, r, "/dashboard/chat")
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	delete(h.convos, auth.SessionID(r.Context()))
	h.mu.Unlock()
	redirect(w, r, "/dashboard/chat")
}
