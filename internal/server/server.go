// Package server exposes the assistant over a websocket chat endpoint.
// Every inbound frame is a {"type", "data"} envelope; replies use the
// same shape. One connection serves one user.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"dietolog/internal/agent"
	"dietolog/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

type client struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	userID   string
	language string
}

func (c *client) send(messageType string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(map[string]any{
		"type": messageType,
		"data": data,
	})
}

func (c *client) sendError(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(map[string]any{
		"type":    "error",
		"message": message,
	})
}

// Server owns the HTTP surface and the connected clients.
type Server struct {
	svc     *agent.Service
	cfg     *config.Config
	logger  *zap.Logger
	clients sync.Map // userID -> *client
	httpSrv *http.Server
}

// New builds the server around the agent service.
func New(svc *agent.Service, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}).Handler(router)

	s.httpSrv = &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: handler,
	}

	go s.pendingLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("port", s.cfg.Server.Port))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id query parameter required", http.StatusBadRequest)
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		language = agent.DefaultLanguage
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn, userID: userID, language: language}
	s.clients.Store(userID, c)
	defer s.clients.Delete(userID)
	s.logger.Info("client connected", zap.String("user", userID))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("client disconnected", zap.String("user", userID), zap.Error(err))
			return
		}
		var msg struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message format")
			continue
		}
		s.dispatch(r.Context(), c, msg.Type, msg.Data)
	}
}

func (s *Server) dispatch(ctx context.Context, c *client, messageType string, data map[string]any) {
	var err error
	switch messageType {
	case "meal":
		err = s.handleMeal(ctx, c, data)
	case "confirm_meal":
		err = s.handleConfirmMeal(ctx, c, data)
	case "comment_meal":
		err = s.handleCommentMeal(ctx, c, data)
	case "set_percent":
		err = s.handleSetPercent(ctx, c, data)
	case "delete_meal":
		err = s.handleDeleteMeal(ctx, c, data)
	case "day_review":
		err = s.handleDayReview(ctx, c, false)
	case "finish_day":
		err = s.handleDayReview(ctx, c, true)
	case "profile":
		err = s.handleProfile(c)
	case "profile_edit":
		err = s.handleProfileEdit(ctx, c, data)
	case "norms":
		err = s.handleNorms(ctx, c, data)
	case "stats":
		err = s.handleStats(ctx, c)
	case "history":
		err = s.handleHistory(ctx, c, data)
	default:
		c.sendError("Unknown message type")
		return
	}
	if err != nil {
		s.logger.Warn("request failed",
			zap.String("user", c.userID),
			zap.String("type", messageType),
			zap.Error(err))
		c.sendError(agent.UserMessage(err))
	}
}

func (s *Server) handleMeal(ctx context.Context, c *client, data map[string]any) error {
	mealType, _ := data["meal_type"].(string)
	if mealType == "" {
		mealType = "snack"
	}
	desc, _ := data["text"].(string)

	var image []byte
	if encoded, ok := data["image"].(string); ok && encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			c.sendError("Invalid image format")
			return nil
		}
		image = decoded
	}
	if desc == "" && image == nil {
		c.sendError("Describe the meal or attach a photo.")
		return nil
	}

	meal, err := s.svc.Intake(ctx, c.userID, mealType, desc, c.language, image)
	if err != nil {
		return err
	}
	return c.send("meal_draft", meal)
}

func (s *Server) handleConfirmMeal(ctx context.Context, c *client, data map[string]any) error {
	mealID, _ := data["id"].(string)
	result, err := s.svc.Confirm(ctx, c.userID, mealID, c.language)
	if err != nil {
		return err
	}
	return c.send("meal_confirmed", map[string]any{
		"meal":    result.Meal,
		"summary": result.Summary,
		"comment": result.Comment,
	})
}

func (s *Server) handleCommentMeal(ctx context.Context, c *client, data map[string]any) error {
	mealID, _ := data["id"].(string)
	comment, _ := data["text"].(string)
	meal, err := s.svc.EditMeal(ctx, c.userID, mealID, comment, c.language)
	if err != nil {
		return err
	}
	return c.send("meal_draft", meal)
}

func (s *Server) handleSetPercent(ctx context.Context, c *client, data map[string]any) error {
	mealID, _ := data["id"].(string)
	percent, ok := data["percent"].(float64)
	if !ok {
		c.sendError("Please enter a number between 1 and 100.")
		return nil
	}
	// Round rather than truncate so 49.6 becomes 50, not 49.
	meal, err := s.svc.SetPercent(ctx, c.userID, mealID, int(math.Round(percent)))
	if err != nil {
		return err
	}
	return c.send("meal_updated", meal)
}

func (s *Server) handleDeleteMeal(ctx context.Context, c *client, data map[string]any) error {
	mealID, _ := data["id"].(string)
	if err := s.svc.DeleteMeal(ctx, c.userID, mealID); err != nil {
		return err
	}
	return c.send("meal_deleted", map[string]any{"id": mealID})
}

func (s *Server) handleDayReview(ctx context.Context, c *client, closeDay bool) error {
	var review *agent.DayReview
	var err error
	if closeDay {
		review, err = s.svc.FinishDay(ctx, c.userID, c.language)
	} else {
		review, err = s.svc.DailyReview(ctx, c.userID, c.language)
	}
	if err != nil {
		if errors.Is(err, agent.ErrNoConfirmedMeals) {
			c.sendError("Nothing to review yet: no confirmed meals today.")
			return nil
		}
		return err
	}
	messageType := "day_review"
	if closeDay {
		messageType = "day_closed"
	}
	return c.send(messageType, review)
}

func (s *Server) handleProfile(c *client) error {
	profile, err := s.svc.Profile(c.userID)
	if err != nil {
		return err
	}
	return c.send("profile", profile)
}

func (s *Server) handleProfileEdit(ctx context.Context, c *client, data map[string]any) error {
	request, _ := data["text"].(string)
	if request == "" {
		c.sendError("Tell me what to change in your profile.")
		return nil
	}
	profile, err := s.svc.EditProfile(ctx, c.userID, request, c.language)
	if err != nil {
		return err
	}
	return c.send("profile", profile)
}

func (s *Server) handleNorms(ctx context.Context, c *client, data map[string]any) error {
	recompute, _ := data["recompute"].(bool)
	norms, err := s.svc.Norms(ctx, c.userID, c.language, recompute)
	if err != nil {
		return err
	}
	return c.send("norms", norms)
}

func (s *Server) handleStats(ctx context.Context, c *client) error {
	today, err := s.svc.Today(c.userID)
	if err != nil {
		return err
	}
	norms, err := s.svc.Norms(ctx, c.userID, c.language, false)
	if err != nil {
		norms = nil
	}
	return c.send("stats", map[string]any{
		"summary": today.Summary,
		"text":    agent.FormatStats(norms, today.Summary),
	})
}

func (s *Server) handleHistory(ctx context.Context, c *client, data map[string]any) error {
	limit := 0
	if v, ok := data["limit"].(float64); ok {
		limit = int(v)
	}
	entries, err := s.svc.RecentHistory(ctx, c.userID, limit)
	if err != nil {
		return err
	}
	return c.send("history", map[string]any{"days": entries})
}

// pendingLoop periodically reminds connected users about unconfirmed
// meal drafts and discards drafts that sat past the timeout.
func (s *Server) pendingLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.PendingCheckMin) * time.Minute
	timeout := time.Duration(s.cfg.PendingTimeoutMin) * time.Minute
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.clients.Range(func(_, value any) bool {
			c := value.(*client)
			remind, expired, err := s.svc.SweepPending(c.userID, interval, timeout)
			if err != nil {
				s.logger.Warn("pending sweep failed", zap.String("user", c.userID), zap.Error(err))
				return true
			}
			for _, meal := range expired {
				c.send("meal_expired", map[string]any{"id": meal.ID, "type": meal.Type})
			}
			for _, meal := range remind {
				c.send("meal_reminder", map[string]any{"id": meal.ID, "type": meal.Type})
			}
			return true
		})
	}
}
