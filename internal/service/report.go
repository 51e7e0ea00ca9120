package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/ingest"
	"github.com/akave-ai/meteringest/internal/model"
	"github.com/akave-ai/meteringest/internal/observability"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var (
	ErrNotFound        = errors.New("ingestion not found")
	ErrArchiveDisabled = errors.New("raw archive is not configured")
	ErrNotArchived     = errors.New("ingestion has no archived payload")
)

// ReportStore persists accepted reports.
type ReportStore interface {
	Save(ctx context.Context, ing *model.Ingestion, report *model.NormalizedReport) error
	GetIngestion(ctx context.Context, id uuid.UUID) (*model.Ingestion, error)
	ListIngestions(ctx context.Context, limit int) ([]model.Ingestion, error)
}

// Archiver keeps a copy of every raw payload.
type Archiver interface {
	ArchiveReport(ctx context.Context, id uuid.UUID, receivedAt time.Time, payload []byte) (string, error)
	GetReport(ctx context.Context, key string) ([]byte, error)
}

// Result is what one successful ingestion produced.
type Result struct {
	IngestionID uuid.UUID
	Source      string
	ReceivedAt  time.Time
	ArchiveKey  string
	Report      *model.NormalizedReport
}

// ReportService runs a payload through envelope decoding, the ingestion
// pipeline, the raw archive and the store.
type ReportService struct {
	inputs   *inputs.Registry
	pipeline *ingest.Pipeline
	store    ReportStore
	archive  Archiver
	recorder *observability.Recorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewReportService wires a ReportService. archive may be nil to disable the
// raw archive.
func NewReportService(
	registry *inputs.Registry,
	pipeline *ingest.Pipeline,
	store ReportStore,
	archive Archiver,
	recorder *observability.Recorder,
	log zerolog.Logger,
) *ReportService {
	if recorder == nil {
		recorder = observability.NewNopRecorder()
	}
	return &ReportService{
		inputs:   registry,
		pipeline: pipeline,
		store:    store,
		archive:  archive,
		recorder: recorder,
		log:      log.With().Str("component", "report_service").Logger(),
		now:      time.Now,
	}
}

// Inputs returns the envelope registry the service decodes with.
func (s *ReportService) Inputs() *inputs.Registry { return s.inputs }

// Ingest decodes payload with the named input (detected when source is
// empty), validates and normalizes it, archives the raw bytes and stores the
// result. Decode failures wrap inputs.ErrInvalidPayload or
// inputs.ErrUnknownInput; rejected reports return an *ingest.IngestError.
func (s *ReportService) Ingest(ctx context.Context, source string, payload []byte) (res *Result, err error) {
	start := s.now()
	label := source
	if label == "" {
		label = "auto"
	}
	ctx, end := s.recorder.StartIngest(ctx, label)
	defer func() { end(err) }()

	name, raw, err := s.inputs.Decode(source, payload)
	if err != nil {
		s.recorder.ReportRejected("")
		s.log.Warn().Err(err).Str("source", label).Msg("payload rejected")
		return nil, err
	}

	report, err := s.pipeline.Ingest(ctx, raw)
	if err != nil {
		var ingestErr *ingest.IngestError
		if errors.As(err, &ingestErr) {
			s.recorder.ReportRejected(ingestErr.Domain)
			s.log.Warn().Err(err).Str("source", name).Str("domain", ingestErr.Domain.String()).Msg("report rejected")
		} else {
			s.recorder.ReportFailed()
		}
		return nil, err
	}

	ing := &model.Ingestion{
		ID:         uuid.New(),
		Source:     name,
		ReceivedAt: start.UTC(),
	}
	if s.archive != nil {
		key, archiveErr := s.archive.ArchiveReport(ctx, ing.ID, ing.ReceivedAt, payload)
		if archiveErr != nil {
			s.log.Error().Err(archiveErr).Str("ingestion_id", ing.ID.String()).Msg("archive raw payload")
		} else {
			ing.ArchiveKey = key
		}
	}

	if err = s.store.Save(ctx, ing, report); err != nil {
		s.recorder.ReportFailed()
		s.log.Error().Err(err).Str("ingestion_id", ing.ID.String()).Msg("save ingestion")
		return nil, fmt.Errorf("save ingestion: %w", err)
	}

	elapsed := s.now().Sub(start)
	s.recorder.ReportIngested(name, report, elapsed)
	s.log.Info().
		Str("ingestion_id", ing.ID.String()).
		Str("source", name).
		Strs("domains", ing.Domains).
		Int("anomalies", len(report.Anomalies)).
		Dur("elapsed", elapsed).
		Msg("report ingested")

	return &Result{
		IngestionID: ing.ID,
		Source:      name,
		ReceivedAt:  ing.ReceivedAt,
		ArchiveKey:  ing.ArchiveKey,
		Report:      report,
	}, nil
}

// Get returns one stored ingestion summary.
func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*model.Ingestion, error) {
	ing, err := s.store.GetIngestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if ing == nil {
		return nil, ErrNotFound
	}
	return ing, nil
}

// List returns the most recent ingestions. limit is clamped to
// [1, MaxListLimit] with DefaultListLimit for zero or negative values.
func (s *ReportService) List(ctx context.Context, limit int) ([]model.Ingestion, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.store.ListIngestions(ctx, limit)
}

// RawPayload returns the archived payload of one ingestion, uncompressed.
func (s *ReportService) RawPayload(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	ing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ing.ArchiveKey == "" {
		return nil, ErrNotArchived
	}
	return s.archive.GetReport(ctx, ing.ArchiveKey)
}
