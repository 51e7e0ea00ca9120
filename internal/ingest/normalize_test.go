package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/meteringest/internal/model"
)

func TestTimestampPrecision_Instant(t *testing.T) {
	const ts = 1732253451768

	t.Run("Should drop sub-second part at second precision", func(t *testing.T) {
		got := PrecisionSecond.Instant(ts)
		assert.Equal(t, time.Date(2024, 11, 22, 5, 30, 51, 0, time.UTC), got)
		assert.Equal(t, "2024-11-22T05:30:51Z", got.Format(time.RFC3339Nano))
	})

	t.Run("Should keep milliseconds at millisecond precision", func(t *testing.T) {
		got := PrecisionMillisecond.Instant(ts)
		assert.Equal(t, time.Date(2024, 11, 22, 5, 30, 51, 768_000_000, time.UTC), got)
	})

	t.Run("Should convert the epoch itself", func(t *testing.T) {
		assert.Equal(t, time.Unix(0, 0).UTC(), PrecisionSecond.Instant(0))
	})
}

func TestParseTimestampPrecision(t *testing.T) {
	cases := map[string]TimestampPrecision{
		"":            PrecisionSecond,
		"second":      PrecisionSecond,
		"ms":          PrecisionMillisecond,
		"Millisecond": PrecisionMillisecond,
	}
	for in, want := range cases {
		got, err := ParseTimestampPrecision(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTimestampPrecision("nanos")
	assert.Error(t, err)
}

func TestErrorCatalog(t *testing.T) {
	c := DefaultErrorCatalog()
	assert.Equal(t, "General system error", c.Describe(127))
	assert.Equal(t, "Communication failure", c.Describe(175))
	assert.Equal(t, "Unknown error", c.Describe(999))

	ext := c.With(map[int64]string{176: "Sensor fault", 127: "System fault"})
	assert.Equal(t, "Sensor fault", ext.Describe(176))
	assert.Equal(t, "System fault", ext.Describe(127))
	assert.Equal(t, "General system error", c.Describe(127), "base catalog must not change")
}

func TestNormalizer_Telemetry(t *testing.T) {
	n := NewNormalizer(PrecisionSecond, nil)

	rec, err := n.Telemetry(section(t, sampleReport(t), model.DomainTelemetry))

	require.NoError(t, err)
	assert.Equal(t, model.Header{Token: "FM1037", Status: "ok", ProtocolVersion: "v1.2"}, rec.Header)
	require.Len(t, rec.Samples, 1)
	assert.Equal(t, model.TelemetrySample{
		Timestamp:                  time.Date(2024, 11, 22, 5, 30, 51, 0, time.UTC),
		FlowRate:                   5.35,
		Discharge:                  36301,
		WorkHours:                  21270,
		CumulativeReverseDischarge: 3,
		DataCount:                  216731,
		CycleSlips:                 50691,
		NoDataCount:                654,
		USS:                        52083075,
	}, rec.Samples[0])
}

func TestNormalizer_Error(t *testing.T) {
	s := map[string]any{
		"token": "FM4568", "status": "ok", "json-ver": "v1.4",
		"mspErrParam": []any{
			map[string]any{"ts": 1732253451768, "err-code": 175},
			map[string]any{"ts": 1732253451768, "err-code": 999},
			map[string]any{"ts": 1732253451768, "err-code": 127},
		},
	}

	t.Run("Should resolve descriptions from the default catalog", func(t *testing.T) {
		rec, err := NewNormalizer(PrecisionSecond, nil).Error(s)
		require.NoError(t, err)
		require.Len(t, rec.Events, 3)
		assert.Equal(t, "Communication failure", rec.Events[0].Description)
		assert.Equal(t, "Unknown error", rec.Events[1].Description)
		assert.Equal(t, "General system error", rec.Events[2].Description)
		assert.Equal(t, int64(999), rec.Events[1].Code)
	})

	t.Run("Should use a caller supplied catalog", func(t *testing.T) {
		rec, err := NewNormalizer(PrecisionSecond, ErrorCatalog{999: "Flash corrupted"}).Error(s)
		require.NoError(t, err)
		assert.Equal(t, "Unknown error", rec.Events[0].Description)
		assert.Equal(t, "Flash corrupted", rec.Events[1].Description)
	})
}

func TestNormalizer_PumpDerivedFields(t *testing.T) {
	cases := []struct {
		name      string
		start     int64
		stop      int64
		startDisc int64
		stopDisc  int64
		wantDur   float64
		wantDisc  int64
	}{
		{"regular cycle", 1732253451768, 1732253456768, 19774947, 19474803, 5.0, -300144},
		{"zero length", 1732253451768, 1732253451768, 10, 10, 0, 0},
		{"inverted", 1732253456768, 1732253451768, 5, 20, -5.0, 15},
		{"sub-second", 1732253451768, 1732253452018, 0, 1, 0.25, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := map[string]any{
				"token": "FM3278", "status": "ok", "json-ver": "v1.4",
				"pumpParam": []any{map[string]any{
					"PumpStartTs": tc.start, "Startdischarge": tc.startDisc, "StartData": 100,
					"StartNoData": 7, "StartCycleSlips": 30,
					"PumpStoptTs": tc.stop, "Stopdischarge": tc.stopDisc, "StopData": 40,
					"StopNoData": 9, "StopCycleSlips": 31,
				}},
			}

			rec, err := NewNormalizer(PrecisionSecond, nil).Pump(s)

			require.NoError(t, err)
			require.Len(t, rec.Cycles, 1)
			c := rec.Cycles[0]
			assert.InDelta(t, tc.wantDur, c.DurationSeconds, 1e-9)
			assert.Equal(t, float64(c.StopTimestamp-c.StartTimestamp)/1000, c.DurationSeconds)
			assert.Equal(t, tc.wantDisc, c.DischargeDifference)
			assert.Equal(t, c.StopDischarge-c.StartDischarge, c.DischargeDifference)
			assert.Equal(t, int64(-60), c.DataDifference)
			assert.Equal(t, int64(2), c.NoDataDifference)
			assert.Equal(t, int64(1), c.CycleSlipsDifference)
		})
	}
}

func TestNormalizer_Diagnostic(t *testing.T) {
	rec, err := NewNormalizer(PrecisionMillisecond, nil).Diagnostic(section(t, sampleReport(t), model.DomainDiagnostic))

	require.NoError(t, err)
	assert.Equal(t, "FM5519", rec.Token)
	assert.Equal(t, time.Date(2024, 11, 22, 5, 30, 51, 768_000_000, time.UTC), rec.Timestamp)
	assert.Equal(t, model.DiagnosParam{RSSI: -54, TTC: 3579, SimID: 1, VBatNoLoad: 349, VBatOnLoad: 326, VSuperCap: 320}, rec.DiagnosParam)
	assert.Equal(t, model.CommParam{PPPTime: 44, NTPTime: 30, ServerCmdsTime: 5}, rec.CommParam)
	require.Contains(t, rec.StoredDiagParams, "param1")
	assert.Equal(t, model.StoredDiagParam{
		Reason: "err-server-con", PPPTime: 40, ServerTime: 120, SimID: 2,
		RSSI: -59, VBatNoLoad: 336, VBatOnLoad: 341, VSuperCap: 311,
	}, rec.StoredDiagParams["param1"])
}

func TestNormalizer_TypeMismatchIsMalformed(t *testing.T) {
	t.Run("Should reject a string flow rate", func(t *testing.T) {
		s := section(t, sampleReport(t), model.DomainTelemetry)
		firstElement(t, s, "teleParam")["flowRate"] = "fast"
		_, err := NewNormalizer(PrecisionSecond, nil).Telemetry(s)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, model.DomainTelemetry, verr.Domain)
		assert.Equal(t, "teleParam[0].flowRate", verr.Field)
		assert.ErrorIs(t, err, ErrMalformedShape)
	})

	t.Run("Should reject a fractional counter", func(t *testing.T) {
		s := section(t, sampleReport(t), model.DomainTelemetry)
		firstElement(t, s, "teleParam")["discharge"] = 12.5
		_, err := NewNormalizer(PrecisionSecond, nil).Telemetry(s)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "teleParam[0].discharge", verr.Field)
		assert.ErrorIs(t, err, ErrMalformedShape)
	})

	t.Run("Should name the diagnostic field that failed", func(t *testing.T) {
		s := section(t, sampleReport(t), model.DomainDiagnostic)
		s["diagnosParam"].(map[string]any)["RSSI"] = "weak"
		_, err := NewNormalizer(PrecisionSecond, nil).Diagnostic(s)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "diagnosParam.RSSI", verr.Field)
		assert.ErrorIs(t, err, ErrMalformedShape)
	})

	t.Run("Should accept integral floats", func(t *testing.T) {
		s := section(t, sampleReport(t), model.DomainTelemetry)
		firstElement(t, s, "teleParam")["discharge"] = float64(12)
		rec, err := NewNormalizer(PrecisionSecond, nil).Telemetry(s)
		require.NoError(t, err)
		assert.Equal(t, int64(12), rec.Samples[0].Discharge)
	})
}
