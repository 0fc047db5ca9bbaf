package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/config"
	"github.com/adityar2309/Vehicle-Parking-App/internal/database"
	"github.com/adityar2309/Vehicle-Parking-App/internal/metrics"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
	"github.com/adityar2309/Vehicle-Parking-App/internal/service"
)

// HTTPServer exposes the parking reservation API. Identity comes from
// the gateway in x-user-* headers; the gateway authenticates, this
// service authorizes.
type HTTPServer struct {
	cfg          config.APIConfig
	reservations *service.ReservationService
	exports      *service.ExportService
	users        *service.UserService
	server       *http.Server
	auth         *HTTPAuth
}

func NewHTTPServer(cfg config.APIConfig, reservations *service.ReservationService, exports *service.ExportService, users *service.UserService) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:          cfg,
		reservations: reservations,
		exports:      exports,
		users:        users,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/lots", srv.handleLots)
	mux.HandleFunc("/api/v1/lots/", srv.handleLotOccupancy)
	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/current", srv.handleCurrentReservation)
	mux.HandleFunc("/api/v1/reservations/release", srv.handleRelease)
	mux.HandleFunc("/api/v1/dashboard", srv.handleDashboard)
	mux.HandleFunc("/api/v1/activities", srv.handleActivities)
	mux.HandleFunc("/api/v1/exports", srv.handleExports)
	mux.HandleFunc("/api/v1/exports/", srv.handleExportJob)
	mux.HandleFunc("/api/v1/admin/exports", srv.handleAdminExports)
	mux.HandleFunc("/api/v1/admin/exports/sweep", srv.handleAdminSweep)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := loggingMiddleware(srv.auth.Wrap(srv.identityMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	log.Printf("HTTP API listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type identityKey struct{}

// identityMiddleware resolves the calling user from headers and keeps
// the users table current. Health checks pass through anonymously.
func (s *HTTPServer) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get("x-user-id")), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusUnauthorized, "missing or invalid x-user-id header")
			return
		}

		user := &models.User{
			ID:       userID,
			Username: strings.TrimSpace(r.Header.Get("x-user-name")),
			Email:    strings.TrimSpace(r.Header.Get("x-user-email")),
			Role:     strings.TrimSpace(r.Header.Get("x-user-role")),
		}
		if chatID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get("x-chat-id")), 10, 64); err == nil {
			user.ChatID = chatID
		}

		if err := s.users.EnsureUser(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve user")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identity(r *http.Request) *models.User {
	user, _ := r.Context().Value(identityKey{}).(*models.User)
	return user
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleLots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("lots")

	lots, err := s.reservations.Lots(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lots": lots})
}

func (s *HTTPServer) handleLotOccupancy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("occupancy")

	const prefix = "/api/v1/lots/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	idStr, ok := strings.CutSuffix(rest, "/occupancy")
	if !ok || idStr == "" || strings.Contains(idStr, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	lotID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lot id")
		return
	}

	view, err := s.reservations.Occupancy(r.Context(), lotID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleBook(w, r)
	case http.MethodGet:
		s.handleHistory(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")

	type request struct {
		LotID         int64  `json:"lot_id"`
		VehicleNumber string `json:"vehicle_number"`
	}
	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.LotID <= 0 {
		writeError(w, http.StatusBadRequest, "lot_id is required")
		return
	}
	if strings.TrimSpace(body.VehicleNumber) == "" {
		writeError(w, http.StatusBadRequest, "vehicle_number is required")
		return
	}

	res, err := s.reservations.Book(r.Context(), identity(r).ID, body.LotID, strings.TrimSpace(body.VehicleNumber))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("history")

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", models.DefaultPaginationSize)

	result, err := s.reservations.History(r.Context(), identity(r).ID, page, perPage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCurrentReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("current")

	res, err := s.reservations.CurrentReservation(r.Context(), identity(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("release")

	res, err := s.reservations.Release(r.Context(), identity(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("dashboard")

	stats, err := s.reservations.Dashboard(r.Context(), identity(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("activities")

	activityType := strings.TrimSpace(r.URL.Query().Get("type"))
	limit := queryInt(r, "limit", 20)

	activities, err := s.reservations.Activities(r.Context(), identity(r).ID, activityType, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// writeDomainError maps the storage sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrLotNotFound),
		errors.Is(err, database.ErrNoActiveReservation),
		errors.Is(err, database.ErrJobNotFound),
		errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrNoCapacity),
		errors.Is(err, database.ErrDuplicateActiveReservation),
		errors.Is(err, database.ErrExportInProgress),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrInvalidVehicleNumber):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)
		log.Printf("http method=%s path=%s status=%d dur=%s", r.Method, r.URL.Path, recorder.status, dur)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
