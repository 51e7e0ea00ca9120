package ingest

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/akave-ai/meteringest/internal/model"
)

// Wire shapes of the device payload. Keys follow the firmware spelling,
// including its typos (PumpStoptTs).

type wireHeader struct {
	Token   string `mapstructure:"token"`
	Status  string `mapstructure:"status"`
	JSONVer string `mapstructure:"json-ver"`
}

func (h wireHeader) header() model.Header {
	return model.Header{Token: h.Token, Status: h.Status, ProtocolVersion: h.JSONVer}
}

type wireTelemetry struct {
	Header    wireHeader            `mapstructure:",squash"`
	TeleParam []wireTelemetrySample `mapstructure:"teleParam"`
}

type wireTelemetrySample struct {
	TS           int64   `mapstructure:"ts"`
	FlowRate     float64 `mapstructure:"flowRate"`
	Discharge    int64   `mapstructure:"discharge"`
	WorkHour     int64   `mapstructure:"workHour"`
	CummRevDisch int64   `mapstructure:"cummRevDisch"`
	Data         int64   `mapstructure:"Data"`
	CycleSlips   int64   `mapstructure:"CycleSlips"`
	NoData       int64   `mapstructure:"NoData"`
	USS          int64   `mapstructure:"USS"`
}

type wireError struct {
	Header      wireHeader       `mapstructure:",squash"`
	MspErrParam []wireErrorEvent `mapstructure:"mspErrParam"`
}

type wireErrorEvent struct {
	TS      int64 `mapstructure:"ts"`
	ErrCode int64 `mapstructure:"err-code"`
}

type wirePump struct {
	Header    wireHeader      `mapstructure:",squash"`
	PumpParam []wirePumpCycle `mapstructure:"pumpParam"`
}

type wirePumpCycle struct {
	PumpStartTs     int64 `mapstructure:"PumpStartTs"`
	StartDischarge  int64 `mapstructure:"Startdischarge"`
	StartData       int64 `mapstructure:"StartData"`
	StartNoData     int64 `mapstructure:"StartNoData"`
	StartCycleSlips int64 `mapstructure:"StartCycleSlips"`
	PumpStopTs      int64 `mapstructure:"PumpStoptTs"`
	StopDischarge   int64 `mapstructure:"Stopdischarge"`
	StopData        int64 `mapstructure:"StopData"`
	StopNoData      int64 `mapstructure:"StopNoData"`
	StopCycleSlips  int64 `mapstructure:"StopCycleSlips"`
}

type wireDiagnostic struct {
	Header           wireHeader                     `mapstructure:",squash"`
	TS               int64                          `mapstructure:"ts"`
	DiagnosParam     wireDiagnosParam               `mapstructure:"diagnosParam"`
	CommParam        wireCommParam                  `mapstructure:"commParam"`
	StoredDiagParams map[string]wireStoredDiagParam `mapstructure:"storedDiagParams"`
}

type wireDiagnosParam struct {
	RSSI       int64 `mapstructure:"RSSI"`
	TTC        int64 `mapstructure:"ttc"`
	SimID      int64 `mapstructure:"simId"`
	VBatNoLoad int64 `mapstructure:"vBatNoLoad"`
	VBatOnLoad int64 `mapstructure:"vBatonLoad"`
	VSuperCap  int64 `mapstructure:"vSuperCap"`
}

type wireCommParam struct {
	PPPTime        int64 `mapstructure:"pppTime"`
	NTPTime        int64 `mapstructure:"ntpTime"`
	ServerCmdsTime int64 `mapstructure:"serverCmdsTime"`
}

type wireStoredDiagParam struct {
	Reason     string `mapstructure:"reason"`
	PPPTime    int64  `mapstructure:"pppTime"`
	ServerTime int64  `mapstructure:"serverTime"`
	SimID      int64  `mapstructure:"simId"`
	RSSI       int64  `mapstructure:"RSSI"`
	VBatNoLoad int64  `mapstructure:"vBatNoLoad"`
	VBatOnLoad int64  `mapstructure:"vBatonLoad"`
	VSuperCap  int64  `mapstructure:"vSuperCap"`
}

// decodeSection copies an untyped section into one of the wire structs.
// Type mismatches come back as ErrMalformedShape.
func decodeSection(d model.Domain, section map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncType(integralNumbers),
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("build %s decoder: %w", d, err)
	}
	if err := dec.Decode(section); err != nil {
		return malformed(d, decodeErrorField(err), err.Error())
	}
	return nil
}

var decodeErrorPath = regexp.MustCompile(`^(?:error decoding '([^']+)'|'([^']+)'|error decoding json\.Number into (\S+):)`)

// decodeErrorField returns the field path named by the first decode failure.
func decodeErrorField(err error) string {
	first, _, _ := strings.Cut(err.Error(), "\n")
	m := decodeErrorPath.FindStringSubmatch(first)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// integralNumbers rejects fractional values bound for integer fields, which
// mapstructure would otherwise truncate.
func integralNumbers(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var f float64
		switch v := data.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		default:
			return data, nil
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("value %v is not an integer", f)
		}
	}
	return data, nil
}
