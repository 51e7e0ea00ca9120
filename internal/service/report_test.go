package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/infrastructure/inputs/builtin"
	"github.com/akave-ai/meteringest/internal/ingest"
	"github.com/akave-ai/meteringest/internal/model"
	"github.com/akave-ai/meteringest/internal/observability"
)

const validReport = `{
  "error": {
    "token": "FM4568", "status": "ok", "json-ver": "v1.4",
    "mspErrParam": [{"ts": 1732253451768, "err-code": 250}]
  },
  "pump": {
    "token": "FM3278", "status": "ok", "json-ver": "v1.4",
    "pumpParam": [
      {"PumpStartTs": 1732253451768, "Startdischarge": 19774947, "StartData": 13653,
       "StartNoData": 1671, "StartCycleSlips": 166, "PumpStoptTs": 1732253456768,
       "Stopdischarge": 19474803, "StopData": 34467, "StopNoData": 2125, "StopCycleSlips": 1481}
    ]
  }
}`

type memoryStore struct {
	mu      sync.Mutex
	saved   map[uuid.UUID]model.Ingestion
	reports map[uuid.UUID]*model.NormalizedReport
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: map[uuid.UUID]model.Ingestion{}, reports: map[uuid.UUID]*model.NormalizedReport{}}
}

func (m *memoryStore) Save(_ context.Context, ing *model.Ingestion, report *model.NormalizedReport) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range report.Domains() {
		ing.Domains = append(ing.Domains, d.String())
	}
	m.saved[ing.ID] = *ing
	m.reports[ing.ID] = report
	return nil
}

func (m *memoryStore) GetIngestion(_ context.Context, id uuid.UUID) (*model.Ingestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ing, ok := m.saved[id]
	if !ok {
		return nil, nil
	}
	return &ing, nil
}

func (m *memoryStore) ListIngestions(_ context.Context, limit int) ([]model.Ingestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Ingestion, 0, limit)
	for _, ing := range m.saved {
		if len(out) == limit {
			break
		}
		out = append(out, ing)
	}
	return out, nil
}

type memoryArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memoryArchive) ArchiveReport(_ context.Context, id uuid.UUID, receivedAt time.Time, payload []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "raw/" + receivedAt.Format("2006/01/02") + "/" + id.String() + ".json.gz"
	a.objects[key] = payload
	return key, nil
}

func (a *memoryArchive) GetReport(_ context.Context, key string) ([]byte, error) {
	b, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func newTestService(store ReportStore, archive Archiver) (*ReportService, *observability.Recorder) {
	rec := observability.NewNopRecorder()
	svc := NewReportService(builtin.Registry(), ingest.New(), store, archive, rec, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 11, 22, 5, 30, 52, 0, time.UTC) }
	return svc, rec
}

func reportsTotal(t *testing.T, rec *observability.Recorder, lines ...string) {
	t.Helper()
	expected := "# HELP meteringest_reports_total Device reports handled, by result.\n" +
		"# TYPE meteringest_reports_total counter\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "meteringest_reports_total"))
}

func TestReportService_Ingest(t *testing.T) {
	t.Run("Should store, archive and count a valid report", func(t *testing.T) {
		store := newMemoryStore()
		archive := &memoryArchive{objects: map[string][]byte{}}
		svc, rec := newTestService(store, archive)

		res, err := svc.Ingest(context.Background(), "", []byte(validReport))

		require.NoError(t, err)
		assert.Equal(t, "http", res.Source)
		assert.Equal(t, "raw/2024/11/22/"+res.IngestionID.String()+".json.gz", res.ArchiveKey)
		assert.Equal(t, []model.Domain{model.DomainError, model.DomainPump}, res.Report.Domains())
		assert.Equal(t, []string{"High error code: 250"}, model.AnomalyMessages(res.Report.Anomalies))

		saved := store.saved[res.IngestionID]
		assert.Equal(t, res.ArchiveKey, saved.ArchiveKey)
		assert.Equal(t, []string{"error", "pump"}, saved.Domains)
		assert.Equal(t, []byte(validReport), archive.objects[res.ArchiveKey])

		reportsTotal(t, rec, `meteringest_reports_total{result="success"} 1`)
	})

	t.Run("Should unwrap a forced envelope", func(t *testing.T) {
		svc, _ := newTestService(newMemoryStore(), nil)
		body, err := json.Marshal(validReport)
		require.NoError(t, err)

		res, err := svc.Ingest(context.Background(), "sqs", []byte(`{"Records": [{"body": `+string(body)+`}]}`))

		require.NoError(t, err)
		assert.Equal(t, "sqs", res.Source)
		assert.Empty(t, res.ArchiveKey)
	})

	t.Run("Should keep going when the archive fails", func(t *testing.T) {
		store := newMemoryStore()
		svc, _ := newTestService(store, &memoryArchive{err: errors.New("bucket gone")})

		res, err := svc.Ingest(context.Background(), "", []byte(validReport))

		require.NoError(t, err)
		assert.Empty(t, res.ArchiveKey)
		assert.Contains(t, store.saved, res.IngestionID)
	})

	t.Run("Should reject an invalid section", func(t *testing.T) {
		store := newMemoryStore()
		svc, rec := newTestService(store, nil)

		_, err := svc.Ingest(context.Background(), "", []byte(`{"pump": {"token": "FM3278", "status": "ok"}}`))

		var ingestErr *ingest.IngestError
		require.ErrorAs(t, err, &ingestErr)
		assert.Equal(t, model.DomainPump, ingestErr.Domain)
		assert.ErrorIs(t, err, ingest.ErrMissingField)
		assert.Empty(t, store.saved)
		reportsTotal(t, rec, `meteringest_reports_total{result="rejected"} 1`)
	})

	t.Run("Should reject an undecodable payload", func(t *testing.T) {
		svc, rec := newTestService(newMemoryStore(), nil)

		_, err := svc.Ingest(context.Background(), "", []byte(`{"pump": `))

		assert.ErrorIs(t, err, inputs.ErrInvalidPayload)
		reportsTotal(t, rec, `meteringest_reports_total{result="rejected"} 1`)
	})

	t.Run("Should reject an unknown input", func(t *testing.T) {
		svc, _ := newTestService(newMemoryStore(), nil)

		_, err := svc.Ingest(context.Background(), "mqtt", []byte(validReport))

		assert.ErrorIs(t, err, inputs.ErrUnknownInput)
	})

	t.Run("Should fail when the store fails", func(t *testing.T) {
		store := newMemoryStore()
		store.saveErr = errors.New("connection refused")
		svc, rec := newTestService(store, nil)

		_, err := svc.Ingest(context.Background(), "", []byte(validReport))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "save ingestion")
		var ingestErr *ingest.IngestError
		assert.False(t, errors.As(err, &ingestErr))
		reportsTotal(t, rec, `meteringest_reports_total{result="failed"} 1`)
	})
}

func TestReportService_Lookup(t *testing.T) {
	store := newMemoryStore()
	archive := &memoryArchive{objects: map[string][]byte{}}
	svc, _ := newTestService(store, archive)
	res, err := svc.Ingest(context.Background(), "", []byte(validReport))
	require.NoError(t, err)

	t.Run("Should get a stored ingestion", func(t *testing.T) {
		ing, err := svc.Get(context.Background(), res.IngestionID)
		require.NoError(t, err)
		assert.Equal(t, "http", ing.Source)
	})

	t.Run("Should report a missing ingestion", func(t *testing.T) {
		_, err := svc.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Should return the archived payload", func(t *testing.T) {
		raw, err := svc.RawPayload(context.Background(), res.IngestionID)
		require.NoError(t, err)
		assert.JSONEq(t, validReport, string(raw))
	})

	t.Run("Should refuse raw payloads without an archive", func(t *testing.T) {
		bare, _ := newTestService(store, nil)
		_, err := bare.RawPayload(context.Background(), res.IngestionID)
		assert.ErrorIs(t, err, ErrArchiveDisabled)
	})

	t.Run("Should clamp the list limit", func(t *testing.T) {
		list, err := svc.List(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		list, err = svc.List(context.Background(), 5000)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
