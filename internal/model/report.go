package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Domain names one section of a device report.
type Domain string

const (
	DomainTelemetry  Domain = "telemetry"
	DomainError      Domain = "error"
	DomainPump       Domain = "pump"
	DomainDiagnostic Domain = "diagnostic"
)

// Domains lists every domain in processing order.
var Domains = []Domain{DomainTelemetry, DomainError, DomainPump, DomainDiagnostic}

// Index returns the position of d in processing order, or -1 if d is unknown.
func (d Domain) Index() int {
	for i, known := range Domains {
		if known == d {
			return i
		}
	}
	return -1
}

func (d Domain) String() string { return string(d) }

// RawReport is a decoded device report keyed by domain name. Section payloads
// stay untyped until they pass schema validation.
type RawReport map[string]any

// Section returns the raw payload for d and whether the report carries it.
func (r RawReport) Section(d Domain) (any, bool) {
	v, ok := r[string(d)]
	return v, ok
}

// Domains returns the known domains present in the report, in processing order.
func (r RawReport) Domains() []Domain {
	var out []Domain
	for _, d := range Domains {
		if _, ok := r[string(d)]; ok {
			out = append(out, d)
		}
	}
	return out
}

// DomainRecord is the typed, normalized form of one report section.
// The set of implementations is closed to this package.
type DomainRecord interface {
	Domain() Domain
	isDomainRecord()
}

// NormalizedReport is the output of one ingestion: a record for every domain
// present in the input plus the anomalies found across them.
type NormalizedReport struct {
	Records   map[Domain]DomainRecord
	Anomalies []Anomaly
}

// NewNormalizedReport returns an empty report ready to receive records.
func NewNormalizedReport() *NormalizedReport {
	return &NormalizedReport{Records: make(map[Domain]DomainRecord, len(Domains))}
}

// Put stores rec under its own domain.
func (r *NormalizedReport) Put(rec DomainRecord) {
	r.Records[rec.Domain()] = rec
}

// Domains returns the domains held by the report, in processing order.
func (r *NormalizedReport) Domains() []Domain {
	var out []Domain
	for _, d := range Domains {
		if _, ok := r.Records[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (r *NormalizedReport) Telemetry() (*TelemetryRecord, bool) {
	rec, ok := r.Records[DomainTelemetry].(*TelemetryRecord)
	return rec, ok
}

func (r *NormalizedReport) Error() (*ErrorRecord, bool) {
	rec, ok := r.Records[DomainError].(*ErrorRecord)
	return rec, ok
}

func (r *NormalizedReport) Pump() (*PumpRecord, bool) {
	rec, ok := r.Records[DomainPump].(*PumpRecord)
	return rec, ok
}

func (r *NormalizedReport) Diagnostic() (*DiagnosticRecord, bool) {
	rec, ok := r.Records[DomainDiagnostic].(*DiagnosticRecord)
	return rec, ok
}

// MarshalJSON renders the report as one object: a key per domain in
// processing order, followed by "anomalies" when any were found.
func (r *NormalizedReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&buf, "%q:", key)
		buf.Write(b)
		return nil
	}
	for _, d := range r.Domains() {
		if err := writeKey(string(d), r.Records[d]); err != nil {
			return nil, err
		}
	}
	if len(r.Anomalies) > 0 {
		if err := writeKey("anomalies", r.Anomalies); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
