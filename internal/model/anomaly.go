package model

// Anomaly flags a reading that is physically implausible or inconsistent.
// Anomalies annotate a successful ingestion; they never reject it.
type Anomaly struct {
	Domain  Domain `json:"domain"`
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (a Anomaly) String() string { return a.Message }

// AnomalyMessages returns the message of every anomaly, preserving order.
func AnomalyMessages(anomalies []Anomaly) []string {
	out := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, a.Message)
	}
	return out
}
