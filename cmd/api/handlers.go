package main

import (
	"context"
	"net/http"

	"github.com/pairchat/pairchat/internal/data"
	"github.com/pairchat/pairchat/internal/middleware"
)

// ChatService is the behaviour the handlers need from the chat layer.
type ChatService interface {
	Send(ctx context.Context, senderID, receiverID, body string) (*data.Message, error)
	ListMessages(ctx context.Context, userID, peerID string) ([]*data.Message, error)
	Edit(ctx context.Context, messageID, requesterID, newBody string) (*data.Message, error)
	Delete(ctx context.Context, messageID, requesterID string) (*data.Message, error)
	React(ctx context.Context, messageID, userID, emoji string) (*data.Message, error)
	Unreact(ctx context.Context, messageID, userID string) (*data.Message, error)
}

type Server struct {
	chat ChatService
}

func NewServer(chat ChatService) *Server {
	return &Server{chat: chat}
}

type messageInput struct {
	Message string `json:"message"`
}

type reactionInput struct {
	Emoji string `json:"emoji"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	var input messageInput
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	msg, err := s.chat.Send(r.Context(), userID, r.PathValue("peerId"), input.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	msgs, err := s.chat.ListMessages(r.Context(), userID, r.PathValue("peerId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	var input messageInput
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	msg, err := s.chat.Edit(r.Context(), r.PathValue("messageId"), userID, input.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	msg, err := s.chat.Delete(r.Context(), r.PathValue("messageId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) addReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	var input reactionInput
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	msg, err := s.chat.React(r.Context(), r.PathValue("messageId"), userID, input.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) removeReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	msg, err := s.chat.Unreact(r.Context(), r.PathValue("messageId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}
