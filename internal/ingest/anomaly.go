package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/akave-ai/meteringest/internal/model"
)

// Plausibility bounds, inclusive.
const (
	MinFlowRate  = 0.0
	MaxFlowRate  = 100.0
	MaxErrorCode = 200
	MaxRSSI      = -30
	MinRSSI      = -120
)

// Detect returns the anomalies found in report, ordered by domain and then by
// element. It only reads the report.
func Detect(report *model.NormalizedReport) []model.Anomaly {
	if report == nil {
		return nil
	}
	var out []model.Anomaly
	if rec, ok := report.Telemetry(); ok {
		out = append(out, telemetryAnomalies(rec)...)
	}
	if rec, ok := report.Error(); ok {
		out = append(out, errorAnomalies(rec)...)
	}
	if rec, ok := report.Pump(); ok {
		out = append(out, pumpAnomalies(rec)...)
	}
	if rec, ok := report.Diagnostic(); ok {
		out = append(out, diagnosticAnomalies(rec)...)
	}
	return out
}

func telemetryAnomalies(rec *model.TelemetryRecord) []model.Anomaly {
	var out []model.Anomaly
	for i, s := range rec.Samples {
		if s.FlowRate < MinFlowRate || s.FlowRate > MaxFlowRate {
			out = append(out, model.Anomaly{
				Domain:  model.DomainTelemetry,
				Field:   fmt.Sprintf("params[%d].flow_rate", i),
				Value:   s.FlowRate,
				Message: "Unusual flow rate: " + formatReading(s.FlowRate),
			})
		}
		if s.Discharge < 0 {
			out = append(out, model.Anomaly{
				Domain:  model.DomainTelemetry,
				Field:   fmt.Sprintf("params[%d].discharge", i),
				Value:   s.Discharge,
				Message: fmt.Sprintf("Negative discharge: %d", s.Discharge),
			})
		}
	}
	return out
}

func errorAnomalies(rec *model.ErrorRecord) []model.Anomaly {
	var out []model.Anomaly
	for i, e := range rec.Events {
		if e.Code > MaxErrorCode {
			out = append(out, model.Anomaly{
				Domain:  model.DomainError,
				Field:   fmt.Sprintf("errors[%d].error_code", i),
				Value:   e.Code,
				Message: fmt.Sprintf("High error code: %d", e.Code),
			})
		}
	}
	return out
}

func pumpAnomalies(rec *model.PumpRecord) []model.Anomaly {
	var out []model.Anomaly
	for i, c := range rec.Cycles {
		// Compare raw epochs: second precision may collapse distinct instants.
		if c.StopTimestamp <= c.StartTimestamp {
			out = append(out, model.Anomaly{
				Domain:  model.DomainPump,
				Field:   fmt.Sprintf("params[%d].pump_stop_ts", i),
				Value:   c.StopTimestamp,
				Message: "Pump stop time is before or equal to start time",
			})
		}
	}
	return out
}

// Only the live snapshot is checked; storedDiagParams are history.
func diagnosticAnomalies(rec *model.DiagnosticRecord) []model.Anomaly {
	rssi := rec.DiagnosParam.RSSI
	if rssi > MaxRSSI || rssi < MinRSSI {
		return []model.Anomaly{{
			Domain:  model.DomainDiagnostic,
			Field:   "diagnosParam.RSSI",
			Value:   rssi,
			Message: fmt.Sprintf("Unusual RSSI value: %d", rssi),
		}}
	}
	return nil
}

// formatReading renders a float reading the way device tooling prints it:
// at least one decimal place, switching to exponent form below 1e-4 and
// from 1e16 up.
func formatReading(v float64) string {
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.ContainsAny(out, ".IN") {
		return out
	}
	return out + ".0"
}
