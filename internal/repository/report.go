package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akave-ai/meteringest/internal/model"
)

// DBTX is the subset of pgxpool.Pool used by the repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ReportRepository persists normalized reports, one table per domain.
type ReportRepository struct {
	db DBTX
}

// NewReportRepository returns a ReportRepository using db.
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save writes the ingestion summary and every domain record of report in a
// single transaction. ing.ID is assigned when empty.
func (r *ReportRepository) Save(ctx context.Context, ing *model.Ingestion, report *model.NormalizedReport) (err error) {
	if ing.ID == uuid.Nil {
		ing.ID = uuid.New()
	}
	anomalies := report.Anomalies
	if anomalies == nil {
		anomalies = []model.Anomaly{}
	}
	ing.Anomalies, err = json.Marshal(anomalies)
	if err != nil {
		return fmt.Errorf("marshal anomalies: %w", err)
	}
	ing.Domains = make([]string, 0, len(report.Records))
	for _, d := range report.Domains() {
		ing.Domains = append(ing.Domains, d.String())
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO ingestions (id, source, received_at, domains, anomalies, archive_key)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ing.ID,
		ing.Source,
		ing.ReceivedAt,
		ing.Domains,
		ing.Anomalies,
		nullable(ing.ArchiveKey),
	)
	if err != nil {
		return fmt.Errorf("insert ingestion: %w", err)
	}

	for _, d := range report.Domains() {
		stmt, buildErr := insertFor(ing.ID, report.Records[d])
		if buildErr != nil {
			err = buildErr
			return err
		}
		if stmt == nil {
			continue
		}
		query, args, buildErr := stmt.ToSql()
		if buildErr != nil {
			err = fmt.Errorf("build %s insert: %w", d, buildErr)
			return err
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s rows: %w", d, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertFor builds the multi-row insert of one domain record. It returns nil
// when the record carries no rows.
func insertFor(id uuid.UUID, rec model.DomainRecord) (*sq.InsertBuilder, error) {
	switch rec := rec.(type) {
	case *model.TelemetryRecord:
		if len(rec.Samples) == 0 {
			return nil, nil
		}
		b := psql.Insert("telemetry_data").Columns(
			"ingestion_id", "token", "status", "json_ver", "timestamp",
			"flow_rate", "discharge", "work_hours", "cumulative_reverse_discharge",
			"data_count", "cycle_slips", "no_data_count", "uss",
		)
		for _, s := range rec.Samples {
			b = b.Values(
				id, rec.Token, rec.Status, rec.ProtocolVersion, s.Timestamp,
				s.FlowRate, s.Discharge, s.WorkHours, s.CumulativeReverseDischarge,
				s.DataCount, s.CycleSlips, s.NoDataCount, s.USS,
			)
		}
		return &b, nil

	case *model.ErrorRecord:
		if len(rec.Events) == 0 {
			return nil, nil
		}
		b := psql.Insert("error_data").Columns(
			"ingestion_id", "token", "status", "json_ver", "timestamp", "error_code", "error_description",
		)
		for _, e := range rec.Events {
			b = b.Values(id, rec.Token, rec.Status, rec.ProtocolVersion, e.Timestamp, e.Code, e.Description)
		}
		return &b, nil

	case *model.PumpRecord:
		if len(rec.Cycles) == 0 {
			return nil, nil
		}
		b := psql.Insert("pump_data").Columns(
			"ingestion_id", "token", "status", "json_ver",
			"pump_start_time", "start_discharge", "start_data", "start_no_data", "start_cycle_slips",
			"pump_stop_time", "stop_discharge", "stop_data", "stop_no_data", "stop_cycle_slips",
			"pump_duration_seconds", "discharge_difference", "data_difference",
			"no_data_difference", "cycle_slips_difference",
		)
		for _, c := range rec.Cycles {
			b = b.Values(
				id, rec.Token, rec.Status, rec.ProtocolVersion,
				c.StartTime, c.StartDischarge, c.StartData, c.StartNoData, c.StartCycleSlips,
				c.StopTime, c.StopDischarge, c.StopData, c.StopNoData, c.StopCycleSlips,
				c.DurationSeconds, c.DischargeDifference, c.DataDifference,
				c.NoDataDifference, c.CycleSlipsDifference,
			)
		}
		return &b, nil

	case *model.DiagnosticRecord:
		diag, err := json.Marshal(rec.DiagnosParam)
		if err != nil {
			return nil, fmt.Errorf("marshal diagnosParam: %w", err)
		}
		comm, err := json.Marshal(rec.CommParam)
		if err != nil {
			return nil, fmt.Errorf("marshal commParam: %w", err)
		}
		stored, err := json.Marshal(rec.StoredDiagParams)
		if err != nil {
			return nil, fmt.Errorf("marshal storedDiagParams: %w", err)
		}
		b := psql.Insert("diagnostic_data").
			Columns(
				"ingestion_id", "token", "status", "json_ver", "timestamp",
				"diagnos_param", "comm_param", "stored_diag_params",
			).
			Values(id, rec.Token, rec.Status, rec.ProtocolVersion, rec.Timestamp, diag, comm, stored)
		return &b, nil
	}
	return nil, fmt.Errorf("unsupported record %T", rec)
}

const ingestionColumns = "id, source, received_at, domains, anomalies, archive_key"

// GetIngestion returns one ingestion summary by id, or nil if not found.
func (r *ReportRepository) GetIngestion(ctx context.Context, id uuid.UUID) (*model.Ingestion, error) {
	row := r.db.QueryRow(ctx, `SELECT `+ingestionColumns+` FROM ingestions WHERE id = $1`, id)
	ing, err := scanIngestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ing, nil
}

// ListIngestions returns the most recent ingestions, newest first.
func (r *ReportRepository) ListIngestions(ctx context.Context, limit int) ([]model.Ingestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ingestionColumns+`
		FROM ingestions
		ORDER BY received_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Ingestion
	for rows.Next() {
		ing, err := scanIngestion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *ing)
	}
	return list, rows.Err()
}

func scanIngestion(row pgx.Row) (*model.Ingestion, error) {
	var (
		ing        model.Ingestion
		archiveKey *string
	)
	if err := row.Scan(
		&ing.ID,
		&ing.Source,
		&ing.ReceivedAt,
		&ing.Domains,
		&ing.Anomalies,
		&archiveKey,
	); err != nil {
		return nil, err
	}
	if archiveKey != nil {
		ing.ArchiveKey = *archiveKey
	}
	return &ing, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
