package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"settle/internal/core"
	"settle/internal/log"
	"settle/internal/settlement"
	"settle/internal/sheets"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps settlement errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, settlement.ErrImbalancedLedger):
		return http.StatusUnprocessableEntity, "imbalanced_ledger"
	case errors.Is(err, core.ErrInvalidPeriod):
		return http.StatusBadRequest, "invalid_period"
	case errors.Is(err, sheets.ErrPeriodNotFound):
		return http.StatusNotFound, "period_not_found"
	case errors.Is(err, settlement.ErrUnsettledLedger):
		return http.StatusInternalServerError, "unsettled_ledger"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "source_error"
	}
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Settlement request failed",
			log.NewFields().WithError(err, kind).ToSlice()...)
		if status == http.StatusBadGateway {
			msg = "ledger source unavailable"
		}
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks that the ledger source answers within a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if _, err := s.settler.Periods(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
			log.NewFields().WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		writeError(w, http.StatusServiceUnavailable, "ledger source unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.settler.Periods(r.Context())
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	latest, _ := sheets.Latest(periods)
	writeJSON(w, http.StatusOK, struct {
		Periods []core.Period `json:"periods"`
		Latest  core.Period   `json:"latest,omitempty"`
	}{Periods: periods, Latest: latest})
}

// parsePeriod reads the period from the path or the "period" query
// parameter. Absent means 0, i.e. latest.
func parsePeriod(r *http.Request) (core.Period, bool) {
	raw := r.PathValue("period")
	if raw == "" {
		raw = r.URL.Query().Get("period")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "latest") {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return core.Period(n), true
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	requested, ok := parsePeriod(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "period must be a positive integer", Kind: "invalid_period"})
		return
	}

	period, err := s.settler.ResolvePeriod(r.Context(), requested)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}

	if rep, ok := s.reports.Get(period); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, rep)
		return
	}

	rep, err := s.settler.Run(r.Context(), period)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	s.reports.Set(period, rep)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, rep)
}
