package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/meteringest/internal/config"
	"github.com/akave-ai/meteringest/internal/ingest"
	"github.com/akave-ai/meteringest/internal/model"
)

const errorReport = `{"error": {"token": "FM4568", "status": "ok", "json-ver": "v1.4",
  "mspErrParam": [{"ts": 1732253451768, "err-code": 176}]}}`

func rawReport(t *testing.T, s string) model.RawReport {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var r model.RawReport
	require.NoError(t, dec.Decode(&r))
	return r
}

func TestPipelineOptions(t *testing.T) {
	t.Run("Should default to second precision and the built-in catalog", func(t *testing.T) {
		opts, err := PipelineOptions(config.PipelineConfig{}, zerolog.Nop())
		require.NoError(t, err)

		report, err := ingest.New(opts...).Ingest(context.Background(), rawReport(t, errorReport))

		require.NoError(t, err)
		rec, ok := report.Error()
		require.True(t, ok)
		assert.Equal(t, ingest.UnknownErrorDescription, rec.Events[0].Description)
		assert.Equal(t, 0, rec.Events[0].Timestamp.Nanosecond())
	})

	t.Run("Should apply precision and extra error codes", func(t *testing.T) {
		opts, err := PipelineOptions(config.PipelineConfig{
			TimestampPrecision: "millisecond",
			ErrorCodes:         "176=Sensor fault",
			Parallel:           true,
		}, zerolog.Nop())
		require.NoError(t, err)

		report, err := ingest.New(opts...).Ingest(context.Background(), rawReport(t, errorReport))

		require.NoError(t, err)
		rec, _ := report.Error()
		assert.Equal(t, "Sensor fault", rec.Events[0].Description)
		assert.Equal(t, 768*time.Millisecond, time.Duration(rec.Events[0].Timestamp.Nanosecond()))
	})

	t.Run("Should reject bad settings", func(t *testing.T) {
		_, err := PipelineOptions(config.PipelineConfig{TimestampPrecision: "minute"}, zerolog.Nop())
		assert.Error(t, err)

		_, err = PipelineOptions(config.PipelineConfig{ErrorCodes: "oops"}, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestOpenArchive_Unconfigured(t *testing.T) {
	archive, err := openArchive(context.Background(), nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = openArchive(context.Background(), &config.StorageConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, archive)
}
