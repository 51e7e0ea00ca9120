package model

import "time"

// Header carries the fields every report section repeats.
type Header struct {
	Token           string `json:"token"`
	Status          string `json:"status"`
	ProtocolVersion string `json:"protocol_version"`
}

// TelemetrySample is one flow meter reading.
type TelemetrySample struct {
	Timestamp                  time.Time `json:"timestamp"`
	FlowRate                   float64   `json:"flow_rate"`
	Discharge                  int64     `json:"discharge"`
	WorkHours                  int64     `json:"work_hours"`
	CumulativeReverseDischarge int64     `json:"cumulative_reverse_discharge"`
	DataCount                  int64     `json:"data_count"`
	CycleSlips                 int64     `json:"cycle_slips"`
	NoDataCount                int64     `json:"no_data_count"`
	USS                        int64     `json:"uss"`
}

type TelemetryRecord struct {
	Header
	Samples []TelemetrySample `json:"params"`
}

func (*TelemetryRecord) Domain() Domain  { return DomainTelemetry }
func (*TelemetryRecord) isDomainRecord() {}

// ErrorEvent is one device-reported error code with its resolved description.
type ErrorEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Code        int64     `json:"error_code"`
	Description string    `json:"error_description"`
}

type ErrorRecord struct {
	Header
	Events []ErrorEvent `json:"errors"`
}

func (*ErrorRecord) Domain() Domain  { return DomainError }
func (*ErrorRecord) isDomainRecord() {}

// PumpCycle is one pump run. Differences and the duration are derived from the
// start/stop values and are never clamped.
type PumpCycle struct {
	StartTime       time.Time `json:"pump_start_time"`
	StartTimestamp  int64     `json:"pump_start_ts"`
	StartDischarge  int64     `json:"start_discharge"`
	StartData       int64     `json:"start_data"`
	StartNoData     int64     `json:"start_no_data"`
	StartCycleSlips int64     `json:"start_cycle_slips"`

	StopTime       time.Time `json:"pump_stop_time"`
	StopTimestamp  int64     `json:"pump_stop_ts"`
	StopDischarge  int64     `json:"stop_discharge"`
	StopData       int64     `json:"stop_data"`
	StopNoData     int64     `json:"stop_no_data"`
	StopCycleSlips int64     `json:"stop_cycle_slips"`

	DurationSeconds      float64 `json:"pump_duration_seconds"`
	DischargeDifference  int64   `json:"discharge_difference"`
	DataDifference       int64   `json:"data_difference"`
	NoDataDifference     int64   `json:"no_data_difference"`
	CycleSlipsDifference int64   `json:"cycle_slips_difference"`
}

type PumpRecord struct {
	Header
	Cycles []PumpCycle `json:"params"`
}

func (*PumpRecord) Domain() Domain  { return DomainPump }
func (*PumpRecord) isDomainRecord() {}

// DiagnosParam is the modem and power snapshot taken with the report.
type DiagnosParam struct {
	RSSI       int64 `json:"RSSI"`
	TTC        int64 `json:"ttc"`
	SimID      int64 `json:"simId"`
	VBatNoLoad int64 `json:"vBatNoLoad"`
	VBatOnLoad int64 `json:"vBatonLoad"`
	VSuperCap  int64 `json:"vSuperCap"`
}

// CommParam holds the connection phase timings of the last upload.
type CommParam struct {
	PPPTime        int64 `json:"pppTime"`
	NTPTime        int64 `json:"ntpTime"`
	ServerCmdsTime int64 `json:"serverCmdsTime"`
}

// StoredDiagParam is a historical diagnostic snapshot kept by the device,
// typically after a failed connection.
type StoredDiagParam struct {
	Reason     string `json:"reason"`
	PPPTime    int64  `json:"pppTime"`
	ServerTime int64  `json:"serverTime"`
	SimID      int64  `json:"simId"`
	RSSI       int64  `json:"RSSI"`
	VBatNoLoad int64  `json:"vBatNoLoad"`
	VBatOnLoad int64  `json:"vBatonLoad"`
	VSuperCap  int64  `json:"vSuperCap"`
}

type DiagnosticRecord struct {
	Header
	Timestamp        time.Time                  `json:"timestamp"`
	DiagnosParam     DiagnosParam               `json:"diagnosParam"`
	CommParam        CommParam                  `json:"commParam"`
	StoredDiagParams map[string]StoredDiagParam `json:"storedDiagParams"`
}

func (*DiagnosticRecord) Domain() Domain  { return DomainDiagnostic }
func (*DiagnosticRecord) isDomainRecord() {}
