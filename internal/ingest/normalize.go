package ingest

import (
	"fmt"

	"github.com/akave-ai/meteringest/internal/model"
)

// Normalizer turns validated sections into typed records. It assumes the
// section already passed Validate; the only failures it reports are values
// whose type cannot be decoded.
type Normalizer struct {
	precision TimestampPrecision
	catalog   ErrorCatalog
}

// NewNormalizer returns a Normalizer. A nil catalog means DefaultErrorCatalog.
func NewNormalizer(precision TimestampPrecision, catalog ErrorCatalog) *Normalizer {
	if catalog == nil {
		catalog = DefaultErrorCatalog()
	}
	return &Normalizer{precision: precision, catalog: catalog}
}

// Normalize dispatches on d.
func (n *Normalizer) Normalize(d model.Domain, section map[string]any) (model.DomainRecord, error) {
	var (
		rec model.DomainRecord
		err error
	)
	switch d {
	case model.DomainTelemetry:
		rec, err = n.Telemetry(section)
	case model.DomainError:
		rec, err = n.Error(section)
	case model.DomainPump:
		rec, err = n.Pump(section)
	case model.DomainDiagnostic:
		rec, err = n.Diagnostic(section)
	default:
		return nil, fmt.Errorf("normalize: unknown domain %q", d)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (n *Normalizer) Telemetry(section map[string]any) (*model.TelemetryRecord, error) {
	var w wireTelemetry
	if err := decodeSection(model.DomainTelemetry, section, &w); err != nil {
		return nil, err
	}
	rec := &model.TelemetryRecord{
		Header:  w.Header.header(),
		Samples: make([]model.TelemetrySample, 0, len(w.TeleParam)),
	}
	for _, p := range w.TeleParam {
		rec.Samples = append(rec.Samples, model.TelemetrySample{
			Timestamp:                  n.precision.Instant(p.TS),
			FlowRate:                   p.FlowRate,
			Discharge:                  p.Discharge,
			WorkHours:                  p.WorkHour,
			CumulativeReverseDischarge: p.CummRevDisch,
			DataCount:                  p.Data,
			CycleSlips:                 p.CycleSlips,
			NoDataCount:                p.NoData,
			USS:                        p.USS,
		})
	}
	return rec, nil
}

func (n *Normalizer) Error(section map[string]any) (*model.ErrorRecord, error) {
	var w wireError
	if err := decodeSection(model.DomainError, section, &w); err != nil {
		return nil, err
	}
	rec := &model.ErrorRecord{
		Header: w.Header.header(),
		Events: make([]model.ErrorEvent, 0, len(w.MspErrParam)),
	}
	for _, p := range w.MspErrParam {
		rec.Events = append(rec.Events, model.ErrorEvent{
			Timestamp:   n.precision.Instant(p.TS),
			Code:        p.ErrCode,
			Description: n.catalog.Describe(p.ErrCode),
		})
	}
	return rec, nil
}

func (n *Normalizer) Pump(section map[string]any) (*model.PumpRecord, error) {
	var w wirePump
	if err := decodeSection(model.DomainPump, section, &w); err != nil {
		return nil, err
	}
	rec := &model.PumpRecord{
		Header: w.Header.header(),
		Cycles: make([]model.PumpCycle, 0, len(w.PumpParam)),
	}
	for _, p := range w.PumpParam {
		rec.Cycles = append(rec.Cycles, model.PumpCycle{
			StartTime:       n.precision.Instant(p.PumpStartTs),
			StartTimestamp:  p.PumpStartTs,
			StartDischarge:  p.StartDischarge,
			StartData:       p.StartData,
			StartNoData:     p.StartNoData,
			StartCycleSlips: p.StartCycleSlips,

			StopTime:       n.precision.Instant(p.PumpStopTs),
			StopTimestamp:  p.PumpStopTs,
			StopDischarge:  p.StopDischarge,
			StopData:       p.StopData,
			StopNoData:     p.StopNoData,
			StopCycleSlips: p.StopCycleSlips,

			DurationSeconds:      float64(p.PumpStopTs-p.PumpStartTs) / 1000,
			DischargeDifference:  p.StopDischarge - p.StartDischarge,
			DataDifference:       p.StopData - p.StartData,
			NoDataDifference:     p.StopNoData - p.StartNoData,
			CycleSlipsDifference: p.StopCycleSlips - p.StartCycleSlips,
		})
	}
	return rec, nil
}

func (n *Normalizer) Diagnostic(section map[string]any) (*model.DiagnosticRecord, error) {
	var w wireDiagnostic
	if err := decodeSection(model.DomainDiagnostic, section, &w); err != nil {
		return nil, err
	}
	stored := make(map[string]model.StoredDiagParam, len(w.StoredDiagParams))
	for key, p := range w.StoredDiagParams {
		stored[key] = model.StoredDiagParam{
			Reason:     p.Reason,
			PPPTime:    p.PPPTime,
			ServerTime: p.ServerTime,
			SimID:      p.SimID,
			RSSI:       p.RSSI,
			VBatNoLoad: p.VBatNoLoad,
			VBatOnLoad: p.VBatOnLoad,
			VSuperCap:  p.VSuperCap,
		}
	}
	return &model.DiagnosticRecord{
		Header:    w.Header.header(),
		Timestamp: n.precision.Instant(w.TS),
		DiagnosParam: model.DiagnosParam{
			RSSI:       w.DiagnosParam.RSSI,
			TTC:        w.DiagnosParam.TTC,
			SimID:      w.DiagnosParam.SimID,
			VBatNoLoad: w.DiagnosParam.VBatNoLoad,
			VBatOnLoad: w.DiagnosParam.VBatOnLoad,
			VSuperCap:  w.DiagnosParam.VSuperCap,
		},
		CommParam: model.CommParam{
			PPPTime:        w.CommParam.PPPTime,
			NTPTime:        w.CommParam.NTPTime,
			ServerCmdsTime: w.CommParam.ServerCmdsTime,
		},
		StoredDiagParams: stored,
	}, nil
}
