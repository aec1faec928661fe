package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/makhammatovb/telegram-group-manager/internal/config"
	"github.com/makhammatovb/telegram-group-manager/internal/groups"
	"github.com/makhammatovb/telegram-group-manager/internal/membership"
	"github.com/makhammatovb/telegram-group-manager/internal/session"
	"github.com/makhammatovb/telegram-group-manager/internal/snapshot"
	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// Server exposes the session workflows over HTTP. Every handler that
// touches the Telegram session funnels through the single worker; two
// requests never interleave client calls.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
	config     *config.Config
	gate       SessionGate
	worker     *Worker
	store      groups.SnapshotStore
	metrics    *Metrics
	scheduler  *Scheduler
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string     `json:"status"`
	Version        string     `json:"version"`
	Timestamp      time.Time  `json:"timestamp"`
	Session        string     `json:"session"`
	ScheduleActive bool       `json:"schedule_active"`
	LastCheck      *time.Time `json:"last_check,omitempty"`
	NextCheck      *time.Time `json:"next_check,omitempty"`
}

// credentialsRequest is the body of POST /update_api_credentials
type credentialsRequest struct {
	APIID       string `json:"api_id"`
	APIHash     string `json:"api_hash"`
	PhoneNumber string `json:"phone_number"`
}

// codeRequest is the body of POST /input_code
type codeRequest struct {
	Code string `json:"code"`
}

// batchRequest is the body of POST /invite_user and POST /remove_user
type batchRequest struct {
	UserUsername   string   `json:"user_username"`
	GroupUsernames []string `json:"group_usernames"`
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, logger *logrus.Logger) *Server {
	factory := func(apiID int, apiHash string) telegram.Client {
		return telegram.NewGotdClient(apiID, apiHash, cfg.Telegram.SessionFile, logger)
	}

	server := &Server{
		logger:  logger,
		config:  cfg,
		gate:    session.NewGate(factory, cfg.Telegram.SessionFile, logger),
		worker:  NewWorker(),
		store:   snapshot.NewStore(cfg.Telegram.SnapshotFile),
		metrics: NewMetrics(),
	}

	if cfg.Server.ScheduleEnabled {
		server.scheduler = NewScheduler(cfg.Server.Schedule, server.runGroupCheck, logger, server.metrics)
	}

	router := mux.NewRouter()
	server.registerRoutes(router)

	server.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Batches hold the response open for minutes (30s pacing per
		// group), so the write side cannot have a timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// registerRoutes sets up HTTP endpoints
func (s *Server) registerRoutes(router *mux.Router) {
	router.HandleFunc("/update_api_credentials", s.handleUpdateCredentials).Methods("POST")
	router.HandleFunc("/input_code", s.handleInputCode).Methods("POST")
	router.HandleFunc("/get_groups", s.handleGetGroups).Methods("GET")
	router.HandleFunc("/invite_user", s.handleInviteUser).Methods("POST")
	router.HandleFunc("/remove_user", s.handleRemoveUser).Methods("POST")

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	router.HandleFunc("/version", s.handleVersion).Methods("GET")
}

// Start initializes the session, starts the scheduler and serves HTTP
// until a termination signal arrives.
func (s *Server) Start() error {
	s.logger.Infof("Starting group manager server on port %d", s.config.Server.Port)

	if err := s.initializeSession(); err != nil {
		return fmt.Errorf("failed to initialize Telegram session: %w", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("Group manager server started successfully")

	s.waitForShutdown()

	return nil
}

// initializeSession establishes the session from the startup credentials
// and triggers the verification code send.
func (s *Server) initializeSession() error {
	creds := session.Credentials{
		APIID:       s.config.Telegram.APIID,
		APIHash:     s.config.Telegram.APIHash,
		PhoneNumber: s.config.Telegram.PhoneNumber,
	}

	var initErr error
	if err := s.worker.TryRun(func() {
		initErr = s.gate.Initialize(context.Background(), creds)
	}); err != nil {
		return err
	}
	if initErr != nil {
		return initErr
	}

	s.logger.Info("Verification code requested; complete the login via POST /input_code")
	return nil
}

// waitForShutdown waits for termination signals and performs graceful shutdown
func (s *Server) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	s.logger.Infof("Received signal %s, starting graceful shutdown...", sig)

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.logger.Info("HTTP server stopped gracefully")
	}

	s.worker.Close()

	if err := s.gate.Close(); err != nil {
		s.logger.Errorf("Failed to close Telegram session: %v", err)
	}
}

// runGroupCheck executes one fetch-and-diff on the session worker. Shared
// by the HTTP handler and the scheduler.
func (s *Server) runGroupCheck() (*groups.DiffResult, error) {
	var result *groups.DiffResult
	var err error

	s.worker.Run(func() {
		client, cerr := s.gate.Client()
		if cerr != nil {
			err = cerr
			return
		}
		tracker := groups.NewTracker(client, s.store, s.config.Telegram.DialogLimit, s.logger)
		// Operations run to completion once started; the request context
		// is deliberately not propagated.
		result, err = tracker.DetectNewGroups(context.Background())
	})

	return result, err
}

// handleUpdateCredentials replaces the API credentials and reinitializes
// the session. Rejected with 409 while another operation holds the session.
func (s *Server) handleUpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if req.APIID == "" || req.APIHash == "" || req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "All fields (api_id, api_hash, phone_number) are required.",
		})
		return
	}

	creds := session.Credentials{
		APIID:       req.APIID,
		APIHash:     req.APIHash,
		PhoneNumber: req.PhoneNumber,
	}

	var initErr error
	if err := s.worker.TryRun(func() {
		initErr = s.gate.Initialize(context.Background(), creds)
	}); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	if initErr != nil {
		var credErr *session.CredentialError
		status := http.StatusInternalServerError
		if errors.As(initErr, &credErr) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": initErr.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "API credentials updated and Telegram client reinitialized.",
	})
}

// handleInputCode completes the login with the one-time code.
func (s *Server) handleInputCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Code is required."})
		return
	}

	var loginErr error
	s.worker.Run(func() {
		loginErr = s.gate.CompleteLogin(context.Background(), req.Code)
	})

	if loginErr != nil {
		if errors.Is(loginErr, telegram.ErrTwoFactorRequired) {
			// Password submission is not supported; the caller learns the
			// login cannot be completed here.
			writeJSON(w, http.StatusOK, map[string]string{
				"error": "Two-step verification enabled. Password needed.",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"error": loginErr.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful."})
}

// handleGetGroups runs the fetch-and-diff and reports newly joined groups.
func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	result, err := s.runGroupCheck()
	duration := time.Since(startTime)

	if err != nil {
		s.metrics.RecordFetch(0, duration, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.RecordFetch(len(result.NewGroups), duration, nil)

	switch {
	case result.Initial:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Initial group list saved."})
	case len(result.NewGroups) > 0:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"new_groups_detected": len(result.NewGroups),
			"groups":              result.NewGroups,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "No new groups detected."})
	}
}

// handleInviteUser invites a user to a list of groups.
func (s *Server) handleInviteUser(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, "invite")
}

// handleRemoveUser removes a user from a list of groups.
func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, "remove")
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, verb string) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if req.UserUsername == "" || len(req.GroupUsernames) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user_username and group_usernames are required.",
		})
		return
	}

	startTime := time.Now()
	var batchErr error
	s.worker.Run(func() {
		client, cerr := s.gate.Client()
		if cerr != nil {
			batchErr = cerr
			return
		}
		delay := time.Duration(s.config.Batch.DelaySeconds) * time.Second
		mutator := membership.NewMutator(client, delay, s.logger)
		// Not cancellable once started; see runGroupCheck.
		ctx := context.Background()
		if verb == "invite" {
			batchErr = mutator.InviteUserToGroups(ctx, req.UserUsername, req.GroupUsernames)
		} else {
			batchErr = mutator.RemoveUserFromGroups(ctx, req.UserUsername, req.GroupUsernames)
		}
	})
	duration := time.Since(startTime)

	if batchErr != nil {
		s.metrics.RecordBatch(verb, 0, duration, batchErr)
		status, message := batchErrorResponse(verb, req.UserUsername, batchErr)
		writeJSON(w, status, map[string]string{"error": message})
		return
	}

	s.metrics.RecordBatch(verb, len(req.GroupUsernames), duration, nil)

	var message string
	if verb == "invite" {
		message = fmt.Sprintf("User %s invited to groups %v", req.UserUsername, req.GroupUsernames)
	} else {
		message = fmt.Sprintf("User %s removed from groups %v", req.UserUsername, req.GroupUsernames)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// batchErrorResponse maps a batch failure onto a status code and the
// user-facing message for it.
func batchErrorResponse(verb, user string, err error) (int, string) {
	var notFound *membership.UserNotFoundError
	if errors.As(err, &notFound) {
		return http.StatusBadRequest, fmt.Sprintf("Cannot find user by username: %s", user)
	}

	var batchErr *membership.BatchError
	if errors.As(err, &batchErr) {
		preposition := "to"
		if verb == "remove" {
			preposition = "from"
		}
		switch {
		case errors.Is(batchErr, telegram.ErrPrivacyRestricted):
			return http.StatusBadRequest, fmt.Sprintf("Cannot %s %s %s %s due to privacy settings.", verb, user, preposition, batchErr.Group)
		case errors.Is(batchErr, telegram.ErrAdminRequired):
			return http.StatusBadRequest, fmt.Sprintf("Cannot %s %s %s %s. Account lacks admin privileges.", verb, user, preposition, batchErr.Group)
		}
		return http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", batchErr.Err)
	}

	return http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessionState := "active"
	if _, err := s.gate.Client(); err != nil {
		sessionState = "not_initialized"
	}

	response := HealthResponse{
		Status:         "healthy",
		Version:        "0.1.0",
		Timestamp:      time.Now(),
		Session:        sessionState,
		ScheduleActive: s.scheduler != nil && s.scheduler.IsRunning(),
	}

	if s.scheduler != nil {
		response.LastCheck = s.scheduler.GetLastRun()
		response.NextCheck = s.scheduler.GetNextRun()
	}

	writeJSON(w, http.StatusOK, response)
}

// handleMetrics handles metrics requests
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.GetStats())
}

// handleVersion handles version requests
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": "0.1.0",
		"mode":    "server",
	})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
