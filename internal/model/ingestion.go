package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ingestion is the persisted summary of one accepted report.
type Ingestion struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Source     string          `db:"source" json:"source"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
	Domains    []string        `db:"domains" json:"domains"`
	Anomalies  json.RawMessage `db:"anomalies" json:"anomalies"`
	ArchiveKey string          `db:"archive_key" json:"archive_key,omitempty"`
}
