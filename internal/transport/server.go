// Package transport exposes the gateway over HTTP/JSON: the operator API for
// initiating and inspecting transfers, and the gateway-to-gateway handshake
// endpoints the counterparty calls.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fazzatti/cacti/internal/gateway"
	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/session"
)

// Server handles the gateway's HTTP API.
type Server struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewServer returns a Server for the given gateway.
func NewServer(gw *gateway.Gateway, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gw: gw, logger: logger}
}

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/transfers", s.handleInitiateTransfer)
	mux.HandleFunc("GET /v1/transfers", s.handleListSessions)
	mux.HandleFunc("GET /v1/transfers/{id}", s.handleGetSession)
	mux.HandleFunc("GET /v1/transfers/{id}/audit", s.handleGetAudit)
	mux.HandleFunc("POST /v1/transfers/{id}/rollback", s.handleRollback)
	mux.HandleFunc("POST /v1/transfers/commence", s.handleCommence)
	mux.HandleFunc("POST /v1/transfers/{id}/complete", s.handleComplete)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInitiateTransfer handles POST /v1/transfers. The session is created
// synchronously; the protocol itself runs in the background unless the caller
// asks to wait with ?wait=true.
func (s *Server) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	sess, err := s.gw.InitiateTransfer(r.Context(), &req)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		if err := s.gw.RunTransfer(r.Context(), sess.ID); err != nil {
			// The session carries the outcome; report it with the error.
			if final, getErr := s.gw.Session(r.Context(), sess.ID); getErr == nil {
				sess = final
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   err.Error(),
				"session": sess,
			})
			return
		}
		final, err := s.gw.Session(r.Context(), sess.ID)
		if err != nil {
			s.writeGatewayError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, final)
		return
	}

	go func() {
		if err := s.gw.RunTransfer(context.Background(), sess.ID); err != nil {
			s.logger.Error("transfer failed", "session_id", sess.ID, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, sess)
}

// handleCommence handles POST /v1/transfers/commence, the inbound half of the
// gateway-to-gateway handshake. Acknowledging implies the destination asset
// was created.
func (s *Server) handleCommence(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	sess, err := s.gw.OnTransferCommence(r.Context(), &req)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleComplete handles POST /v1/transfers/{id}/complete.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Proof string `json:"proof"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	sess, err := s.gw.OnTransferComplete(r.Context(), r.PathValue("id"), body.Proof)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleRollback handles POST /v1/transfers/{id}/rollback, the operator
// escape hatch for a stuck session.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.Reason == "" {
		body.Reason = "operator requested"
	}
	id := r.PathValue("id")
	if err := s.gw.Rollback(r.Context(), id, body.Reason); err != nil {
		s.writeGatewayError(w, err)
		return
	}
	sess, err := s.gw.Session(r.Context(), id)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleListSessions handles GET /v1/transfers.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.gw.Sessions(r.Context())
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleGetSession handles GET /v1/transfers/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.gw.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleGetAudit handles GET /v1/transfers/{id}/audit.
func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.gw.Session(r.Context(), id); err != nil {
		s.writeGatewayError(w, err)
		return
	}
	records, err := s.gw.History(r.Context(), id)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// writeGatewayError maps gateway errors onto HTTP status codes.
func (s *Server) writeGatewayError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	var pe *gateway.PhaseError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case session.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pe):
		writeError(w, http.StatusConflict, err.Error())
	case ledger.IsUnsupported(err) || gateway.IsUninitialized(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case gateway.IsRollbackError(err):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
