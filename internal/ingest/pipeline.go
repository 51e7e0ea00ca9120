package ingest

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/akave-ai/meteringest/internal/model"
)

// Option configures a Pipeline.
type Option func(*settings)

type settings struct {
	precision TimestampPrecision
	catalog   ErrorCatalog
	parallel  bool
	logger    zerolog.Logger
}

// WithTimestampPrecision sets how epoch values are converted. Default: PrecisionSecond.
func WithTimestampPrecision(p TimestampPrecision) Option {
	return func(s *settings) { s.precision = p }
}

// WithErrorCatalog replaces the default error code table.
func WithErrorCatalog(c ErrorCatalog) Option {
	return func(s *settings) { s.catalog = c }
}

// WithParallel processes the sections of one report concurrently.
func WithParallel(on bool) Option {
	return func(s *settings) { s.parallel = on }
}

// WithLogger sets the logger receiving pipeline events. Default: disabled.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// Pipeline validates, normalizes and inspects device reports. It holds no
// per-report state and is safe for concurrent use.
type Pipeline struct {
	processors map[model.Domain]DomainProcessor
	parallel   bool
	log        zerolog.Logger
}

// New builds a Pipeline with a processor for every domain.
func New(opts ...Option) *Pipeline {
	s := settings{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	n := NewNormalizer(s.precision, s.catalog)
	procs := make(map[model.Domain]DomainProcessor, len(model.Domains))
	for _, d := range model.Domains {
		p, err := NewProcessor(d, n)
		if err != nil {
			// model.Domains and NewProcessor are maintained together.
			panic(err)
		}
		procs[d] = p
	}
	return &Pipeline{
		processors: procs,
		parallel:   s.parallel,
		log:        s.logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest processes every domain present in raw. The first invalid section
// rejects the whole report with an *IngestError; nothing partial is returned.
func (p *Pipeline) Ingest(ctx context.Context, raw model.RawReport) (*model.NormalizedReport, error) {
	present := raw.Domains()
	if len(present) == 0 {
		p.log.Warn().Msg("report carries no known section")
	}
	for key := range raw {
		if model.Domain(key).Index() < 0 {
			p.log.Debug().Str("key", key).Msg("ignoring unknown report key")
		}
	}

	var (
		records []model.DomainRecord
		err     error
	)
	if p.parallel && len(present) > 1 {
		records, err = p.processParallel(ctx, raw, present)
	} else {
		records, err = p.processSequential(ctx, raw, present)
	}
	if err != nil {
		return nil, err
	}

	report := model.NewNormalizedReport()
	for _, rec := range records {
		report.Put(rec)
	}
	report.Anomalies = Detect(report)
	if len(report.Anomalies) > 0 {
		p.log.Warn().
			Strs("anomalies", model.AnomalyMessages(report.Anomalies)).
			Msg("anomalies detected")
	}
	return report, nil
}

func (p *Pipeline) process(d model.Domain, raw model.RawReport) (model.DomainRecord, error) {
	section, _ := raw.Section(d)
	rec, err := p.processors[d].Process(section)
	if err != nil {
		p.log.Error().Err(err).Str("domain", d.String()).Msg("section rejected")
		return nil, &IngestError{Domain: d, Cause: err}
	}
	p.log.Debug().Str("domain", d.String()).Msg("section normalized")
	return rec, nil
}

func (p *Pipeline) processSequential(ctx context.Context, raw model.RawReport, present []model.Domain) ([]model.DomainRecord, error) {
	records := make([]model.DomainRecord, 0, len(present))
	for _, d := range present {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := p.process(d, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// processParallel runs one goroutine per section. A failure stops every
// section ordered after it from starting, and the reported error is always
// the one of the earliest failing domain, as in sequential mode.
func (p *Pipeline) processParallel(ctx context.Context, raw model.RawReport, present []model.Domain) ([]model.DomainRecord, error) {
	records := make([]model.DomainRecord, len(present))
	errs := make([]error, len(present))

	var lowest atomic.Int64
	lowest.Store(int64(len(present)))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range present {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if int64(i) > lowest.Load() {
				return nil
			}
			rec, err := p.process(d, raw)
			if err != nil {
				errs[i] = err
				lowerTo(&lowest, int64(i))
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func lowerTo(v *atomic.Int64, n int64) {
	for {
		cur := v.Load()
		if n >= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}
