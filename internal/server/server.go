// Package server exposes the HTTP surface: the Telegram webhook
// endpoint and a small JSON API for signup, login, and the gallery read
// side. Rendering, sessions, and static files belong to the front-end,
// not here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"gallery-tg-bot/internal/config"
	apperrors "gallery-tg-bot/internal/errors"
	"gallery-tg-bot/internal/gallery"
	"gallery-tg-bot/internal/registry"
	"gallery-tg-bot/internal/telegram"
)

// Server wires the HTTP handlers to the core components.
type Server struct {
	cfg        config.Config
	registry   *registry.Registry
	chapters   *gallery.Store
	dispatcher *telegram.Dispatcher
	notifier   telegram.Notifier
	logger     *slog.Logger

	mux        *http.ServeMux
	httpServer *http.Server
}

// New builds the server and its routes.
func New(
	cfg config.Config,
	reg *registry.Registry,
	chapters *gallery.Store,
	dispatcher *telegram.Dispatcher,
	notifier telegram.Notifier,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   reg,
		chapters:   chapters,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		mux:        http.NewServeMux(),
	}

	// The webhook path embeds the bot token as a capability secret, the
	// way Telegram recommends. Without a token there is no webhook.
	if cfg.Telegram.BotToken != "" {
		s.mux.HandleFunc("/webhook/"+cfg.Telegram.BotToken, s.handleWebhook)
	}
	s.mux.HandleFunc("/api/signup", s.handleSignup)
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.HandleFunc("/api/chapters", s.handleChapters)
	s.mux.HandleFunc("/api/images", s.handleImages)
	s.mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.withRequestLog(s.mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook receives pushed Telegram updates. The platform only
// needs to know the event arrived, so the response is 200 "ok" no
// matter what happens inside: a malformed body counts as an
// unrecognized update, not a client error.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("discarding undecodable webhook body", "error", err)
		s.ack(w)
		return
	}

	// Answer Telegram immediately; the dispatch continues on its own
	// bounded context. Stores serialize their mutations, so concurrent
	// deliveries are safe.
	updateID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.DispatchTimeout)
		defer cancel()
		s.logger.Debug("dispatching update", "dispatch_id", updateID)
		s.dispatcher.Dispatch(ctx, update)
	}()

	s.ack(w)
}

func (s *Server) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleSignup registers a new account and asks the admin to approve or
// deny it. The notification is best effort; the account exists either
// way.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	err := s.registry.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, apperrors.ErrUserExists) {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": apperrors.ErrUserExists.UserMsg})
		return
	}
	if err != nil {
		s.logger.Error("signup failed", "error", err, "username", req.Username)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}

	s.notifier.SendApprovalRequest(
		s.cfg.Telegram.AdminChatID,
		fmt.Sprintf("👋 New Signup: User '%s' is waiting for approval.", req.Username),
		req.Username,
	)

	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "pending"})
}

// handleLogin checks credentials and reports the account state. Session
// management is the front-end's problem.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := s.registry.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Error("login check failed", "error", err, "username", req.Username)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}

	switch result {
	case registry.AuthGranted:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
	case registry.AuthPendingApproval:
		s.writeJSON(w, http.StatusForbidden, map[string]string{"status": "pending"})
	default:
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "invalid"})
	}
}

// handleChapters lists chapter names for the gallery front-end.
func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	chapters, err := s.chapters.Chapters()
	if err != nil {
		s.logger.Error("failed to list chapters", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing failed"})
		return
	}
	if chapters == nil {
		chapters = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"chapters": chapters})
}

// handleImages lists image filenames in one chapter
// (GET /api/images?chapter=name).
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	chapter := r.URL.Query().Get("chapter")
	if chapter == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chapter is required"})
		return
	}

	images, err := s.chapters.Images(chapter)
	if err != nil {
		s.logger.Error("failed to list images", "error", err, "chapter", chapter)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing failed"})
		return
	}
	if images == nil {
		images = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"images": images})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
