package ingest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akave-ai/meteringest/internal/model"
)

// sampleReportJSON is a report as published by the device simulator.
const sampleReportJSON = `{
  "telemetry": {
    "token": "FM1037", "status": "ok", "json-ver": "v1.2",
    "teleParam": [
      {"ts": 1732253451768, "flowRate": 5.35, "discharge": 36301, "workHour": 21270,
       "cummRevDisch": 3, "Data": 216731, "CycleSlips": 50691, "NoData": 654, "USS": 52083075}
    ]
  },
  "error": {
    "token": "FM4568", "status": "ok", "json-ver": "v1.4",
    "mspErrParam": [{"ts": 1732253451768, "err-code": 127}]
  },
  "pump": {
    "token": "FM3278", "status": "ok", "json-ver": "v1.4",
    "pumpParam": [
      {"PumpStartTs": 1732253451768, "Startdischarge": 19774947, "StartData": 13653,
       "StartNoData": 1671, "StartCycleSlips": 166, "PumpStoptTs": 1732253456768,
       "Stopdischarge": 19474803, "StopData": 34467, "StopNoData": 2125, "StopCycleSlips": 1481}
    ]
  },
  "diagnostic": {
    "token": "FM5519", "status": "ok", "ts": 1732253451768, "json-ver": "v1.4",
    "diagnosParam": {"RSSI": -54, "ttc": 3579, "simId": 1, "vBatNoLoad": 349, "vBatonLoad": 326, "vSuperCap": 320},
    "commParam": {"pppTime": 44, "ntpTime": 30, "serverCmdsTime": 5},
    "storedDiagParams": {
      "param1": {"reason": "err-server-con", "pppTime": 40, "serverTime": 120, "simId": 2,
                 "RSSI": -59, "vBatNoLoad": 336, "vBatonLoad": 341, "vSuperCap": 311}
    }
  }
}`

// decodeReport decodes JSON the way the inbound transports do.
func decodeReport(t *testing.T, raw string) model.RawReport {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var r model.RawReport
	require.NoError(t, dec.Decode(&r))
	return r
}

func sampleReport(t *testing.T) model.RawReport {
	return decodeReport(t, sampleReportJSON)
}

// section returns the untyped section of d in r, failing the test if absent.
func section(t *testing.T, r model.RawReport, d model.Domain) map[string]any {
	t.Helper()
	s, ok := r[string(d)].(map[string]any)
	require.True(t, ok, "section %s missing", d)
	return s
}

// firstElement returns the first list element of a list-bearing section.
func firstElement(t *testing.T, s map[string]any, listKey string) map[string]any {
	t.Helper()
	items, ok := s[listKey].([]any)
	require.True(t, ok)
	require.NotEmpty(t, items)
	elem, ok := items[0].(map[string]any)
	require.True(t, ok)
	return elem
}
