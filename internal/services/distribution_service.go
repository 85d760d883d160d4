package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tipsplit/internal/core"
	applog "tipsplit/internal/log"
	"tipsplit/internal/metrics"
	"tipsplit/internal/storage"
)

var ErrHistoryUnavailable = errors.New("distribution history is not enabled")

// Publisher announces recorded distributions; *amqp.Client implements it.
type Publisher interface {
	PublishDistributionRecorded(ctx context.Context, id string) error
}

// DistributionService runs the allocation and records the outcome. History
// and publisher are optional.
type DistributionService struct {
	history   storage.Repository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *applog.Logger

	now   func() time.Time
	newID func() string
}

func NewDistributionService(history storage.Repository, publisher Publisher, m *metrics.Metrics, logger *applog.Logger) *DistributionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DistributionService{
		history:   history,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent(applog.ComponentDistribution),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Distribute allocates req and, when history is enabled, records the run.
// requestDoc is the caller's request as stored alongside the result.
// Recording and publishing failures are logged; the computed result is
// still returned.
func (s *DistributionService) Distribute(ctx context.Context, req core.Request, requestDoc []byte) (Response, error) {
	logger := s.logger
	if l := applog.FromContext(ctx); l.Component() != "unknown" {
		logger = l.WithComponent(applog.ComponentDistribution)
	}

	result, err := core.Distribute(req)
	if err != nil {
		var insufficient *core.InsufficientFundsError
		if errors.As(err, &insufficient) {
			s.metrics.ObserveRejected(metrics.OutcomeInsufficientFunds)
			logger.WarnContext(ctx, "Distribution rejected",
				applog.FieldOperation, applog.OpDistribute,
				applog.FieldPayees, len(req.Payees),
				applog.FieldDistributable, insufficient.Distributable,
				applog.FieldNeeded, insufficient.Needed)
		}
		return Response{}, err
	}

	s.metrics.ObserveDistribution(result.Summary.TotalCashDistributed, result.Summary.BitTotal, len(result.Transfers))

	id := ""
	if s.history != nil {
		id = s.newID()
	}
	resp := NewResponse(id, result)

	logger.InfoContext(ctx, "Distribution computed", applog.NewFields().
		WithOperation(applog.OpDistribute).
		WithDistributionID(id).
		WithSummary(resp.Summary.TotalCashDistributed, resp.Summary.BitTotal, resp.Summary.RemainingInRegister, len(resp.BitTransfers)).
		ToSlice()...)

	if id == "" {
		return resp, nil
	}

	if err := s.record(ctx, resp, requestDoc); err != nil {
		logger.ErrorContext(ctx, "Failed to record distribution",
			applog.FieldOperation, applog.OpRecord,
			applog.FieldDistributionID, id,
			applog.FieldError, err)
		resp.ID = ""
		return resp, nil
	}

	if s.publisher != nil {
		if err := s.publisher.PublishDistributionRecorded(ctx, id); err != nil {
			logger.ErrorContext(ctx, "Failed to publish distribution event",
				applog.FieldOperation, applog.OpPublish,
				applog.FieldDistributionID, id,
				applog.FieldError, err)
		}
	}

	return resp, nil
}

func (s *DistributionService) record(ctx context.Context, resp Response, requestDoc []byte) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if requestDoc == nil {
		requestDoc = []byte("{}")
	}

	return s.history.Save(ctx, storage.DistributionRecord{
		ID:                   resp.ID,
		CreatedAt:            s.now().UTC(),
		Request:              requestDoc,
		Response:             body,
		TotalCashDistributed: resp.Summary.TotalCashDistributed,
		BitTotal:             resp.Summary.BitTotal,
		RemainingInRegister:  resp.Summary.RemainingInRegister,
		Payees:               len(resp.Employees),
		Transfers:            len(resp.BitTransfers),
	})
}

// Get returns a recorded distribution.
func (s *DistributionService) Get(ctx context.Context, id string) (storage.DistributionRecord, error) {
	if s.history == nil {
		return storage.DistributionRecord{}, ErrHistoryUnavailable
	}
	return s.history.Get(ctx, id)
}

// List returns the most recent recorded distributions.
func (s *DistributionService) List(ctx context.Context, limit int) ([]storage.DistributionRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.history.List(ctx, limit)
}

// pinger is implemented by publishers that can check their broker.
type pinger interface {
	Ping() error
}

// Ready reports whether the history backend and, when events are enabled,
// the broker answer.
func (s *DistributionService) Ready(ctx context.Context) error {
	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	if p, ok := s.publisher.(pinger); ok {
		if err := p.Ping(); err != nil {
			return fmt.Errorf("events: %w", err)
		}
	}
	return nil
}

// HistoryEnabled reports whether runs are recorded.
func (s *DistributionService) HistoryEnabled() bool {
	return s.history != nil
}
