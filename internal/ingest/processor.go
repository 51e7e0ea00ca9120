package ingest

import (
	"fmt"

	"github.com/akave-ai/meteringest/internal/model"
)

// DomainProcessor validates and normalizes the section of a single domain.
type DomainProcessor interface {
	Domain() model.Domain
	Process(section any) (model.DomainRecord, error)
}

// NewProcessor returns the processor for d.
func NewProcessor(d model.Domain, n *Normalizer) (DomainProcessor, error) {
	switch d {
	case model.DomainTelemetry:
		return telemetryProcessor{n}, nil
	case model.DomainError:
		return errorProcessor{n}, nil
	case model.DomainPump:
		return pumpProcessor{n}, nil
	case model.DomainDiagnostic:
		return diagnosticProcessor{n}, nil
	}
	return nil, fmt.Errorf("no processor for domain %q", d)
}

// validated runs the schema check and hands back the section as a mapping.
func validated(d model.Domain, section any) (map[string]any, error) {
	if err := Validate(d, section); err != nil {
		return nil, err
	}
	m, _ := asObject(section)
	return m, nil
}

type telemetryProcessor struct{ n *Normalizer }

func (telemetryProcessor) Domain() model.Domain { return model.DomainTelemetry }

func (p telemetryProcessor) Process(section any) (model.DomainRecord, error) {
	m, err := validated(model.DomainTelemetry, section)
	if err != nil {
		return nil, err
	}
	rec, err := p.n.Telemetry(m)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type errorProcessor struct{ n *Normalizer }

func (errorProcessor) Domain() model.Domain { return model.DomainError }

func (p errorProcessor) Process(section any) (model.DomainRecord, error) {
	m, err := validated(model.DomainError, section)
	if err != nil {
		return nil, err
	}
	rec, err := p.n.Error(m)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type pumpProcessor struct{ n *Normalizer }

func (pumpProcessor) Domain() model.Domain { return model.DomainPump }

func (p pumpProcessor) Process(section any) (model.DomainRecord, error) {
	m, err := validated(model.DomainPump, section)
	if err != nil {
		return nil, err
	}
	rec, err := p.n.Pump(m)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type diagnosticProcessor struct{ n *Normalizer }

func (diagnosticProcessor) Domain() model.Domain { return model.DomainDiagnostic }

func (p diagnosticProcessor) Process(section any) (model.DomainRecord, error) {
	m, err := validated(model.DomainDiagnostic, section)
	if err != nil {
		return nil, err
	}
	rec, err := p.n.Diagnostic(m)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
