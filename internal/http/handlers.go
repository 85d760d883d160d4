package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	applog "tipsplit/internal/log"
	"tipsplit/internal/metrics"
	"tipsplit/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parsed, err := ParseDistributeRequest(r, s.opts.MaxBodyBytes, s.opts.DefaultMinCash)
	if err != nil {
		if errors.Is(err, ErrMalformedInput) {
			s.metrics.ObserveRejected(metrics.OutcomeInvalid)
			logger.WarnContext(ctx, "Invalid distribution request",
				applog.FieldOperation, applog.OpValidate,
				applog.FieldError, err)
		}
		writeError(w, r, err)
		return
	}

	if s.responses != nil {
		if body, ok := s.responses.Get(parsed.Digest); ok {
			s.metrics.ObserveCache(true)
			logger.DebugContext(ctx, "Distribution replayed from cache")
			NewJSONResponse().Header("X-Cache", "HIT").RawBody(body).Write(w)
			return
		}
		s.metrics.ObserveCache(false)
	}

	resp, err := s.service.Distribute(ctx, parsed.Core, parsed.Canonical)
	if err != nil {
		writeError(w, r, err)
		return
	}

	builder := NewJSONResponse().Body(resp)
	if s.responses != nil {
		body, err := json.Marshal(resp)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.responses.Set(parsed.Digest, body)
		builder = NewJSONResponse().Header("X-Cache", "MISS").RawBody(body)
	}
	builder.Write(w)
}

// distributionSummary is one entry of GET /distributions.
type distributionSummary struct {
	ID                   string     `json:"id"`
	CreatedAt            time.Time  `json:"created_at"`
	TotalCashDistributed int64      `json:"total_cash_distributed"`
	BitTotal             int64      `json:"bit_total"`
	RemainingInRegister  int64      `json:"remaining_in_register"`
	Payees               int        `json:"payees"`
	Transfers            int        `json:"transfers"`
	ExportedAt           *time.Time `json:"exported_at,omitempty"`
}

type distributionList struct {
	Distributions []distributionSummary `json:"distributions"`
}

func (s *Server) handleListDistributions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit, maxListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.service.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := distributionList{Distributions: make([]distributionSummary, 0, len(records))}
	for _, rec := range records {
		out.Distributions = append(out.Distributions, summarize(rec))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, storage.ErrNotFound)
		return
	}

	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().RawBody(record.Response).Write(w)
}

func summarize(rec storage.DistributionRecord) distributionSummary {
	return distributionSummary{
		ID:                   rec.ID,
		CreatedAt:            rec.CreatedAt,
		TotalCashDistributed: rec.TotalCashDistributed,
		BitTotal:             rec.BitTotal,
		RemainingInRegister:  rec.RemainingInRegister,
		Payees:               rec.Payees,
		Transfers:            rec.Transfers,
		ExportedAt:           rec.ExportedAt,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ready(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
