package ingest

import (
	"fmt"
	"sort"

	"github.com/akave-ai/meteringest/internal/model"
)

// Wire key of the protocol version carried by every section.
const protocolVersionKey = "json-ver"

var headerFields = []string{"token", "status", protocolVersionKey}

// sectionSchema is the structural contract of one domain section.
type sectionSchema struct {
	fields        []string // extra top-level keys
	listKey       string
	elementFields []string
	subsections   []subsection
}

// subsection is a key that must hold a mapping. When entries is set the
// mapping is keyed by slot name and fields apply to every entry.
type subsection struct {
	key     string
	fields  []string
	entries bool
}

var schemas = map[model.Domain]sectionSchema{
	model.DomainTelemetry: {
		listKey: "teleParam",
		elementFields: []string{
			"ts", "flowRate", "discharge", "workHour", "cummRevDisch",
			"Data", "CycleSlips", "NoData", "USS",
		},
	},
	model.DomainError: {
		listKey:       "mspErrParam",
		elementFields: []string{"ts", "err-code"},
	},
	model.DomainPump: {
		listKey: "pumpParam",
		elementFields: []string{
			"PumpStartTs", "Startdischarge", "StartData", "StartNoData", "StartCycleSlips",
			"PumpStoptTs", "Stopdischarge", "StopData", "StopNoData", "StopCycleSlips",
		},
	},
	model.DomainDiagnostic: {
		fields: []string{"ts"},
		subsections: []subsection{
			{key: "diagnosParam", fields: []string{"RSSI", "ttc", "simId", "vBatNoLoad", "vBatonLoad", "vSuperCap"}},
			{key: "commParam", fields: []string{"pppTime", "ntpTime", "serverCmdsTime"}},
			{key: "storedDiagParams", entries: true, fields: []string{
				"reason", "pppTime", "serverTime", "simId", "RSSI", "vBatNoLoad", "vBatonLoad", "vSuperCap",
			}},
		},
	},
}

// Validate checks the structural contract of one section and returns the
// first violation as a *ValidationError.
func Validate(d model.Domain, section any) error {
	schema, ok := schemas[d]
	if !ok {
		return malformed(d, "", "unknown domain")
	}
	m, ok := asObject(section)
	if !ok {
		return malformed(d, "", fmt.Sprintf("section must be an object, got %T", section))
	}
	for _, f := range headerFields {
		v, ok := m[f]
		if !ok {
			return missingField(d, f)
		}
		if v == nil {
			return malformed(d, f, "value is null")
		}
	}
	for _, f := range schema.fields {
		v, ok := m[f]
		if !ok {
			return missingField(d, f)
		}
		if v == nil {
			return malformed(d, f, "value is null")
		}
	}
	if schema.listKey != "" {
		raw, ok := m[schema.listKey]
		if !ok {
			return missingField(d, schema.listKey)
		}
		items, ok := asList(raw)
		if !ok {
			return malformed(d, schema.listKey, fmt.Sprintf("expected a list, got %T", raw))
		}
		for i, item := range items {
			elem, ok := asObject(item)
			if !ok {
				return malformed(d, fmt.Sprintf("%s[%d]", schema.listKey, i), fmt.Sprintf("expected an object, got %T", item))
			}
			for _, f := range schema.elementFields {
				v, ok := elem[f]
				if !ok {
					return missingField(d, fmt.Sprintf("%s[%d].%s", schema.listKey, i, f))
				}
				if v == nil {
					return malformed(d, fmt.Sprintf("%s[%d].%s", schema.listKey, i, f), "value is null")
				}
			}
		}
	}
	for _, sub := range schema.subsections {
		raw, ok := m[sub.key]
		if !ok {
			return missingField(d, sub.key)
		}
		obj, ok := asObject(raw)
		if !ok {
			return malformed(d, sub.key, fmt.Sprintf("expected an object, got %T", raw))
		}
		if !sub.entries {
			if err := requireFields(d, sub.key, obj, sub.fields); err != nil {
				return err
			}
			continue
		}
		for _, name := range sortedKeys(obj) {
			path := sub.key + "." + name
			entry, ok := asObject(obj[name])
			if !ok {
				return malformed(d, path, fmt.Sprintf("expected an object, got %T", obj[name]))
			}
			if err := requireFields(d, path, entry, sub.fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// requireFields checks that obj carries every field with a non-null value.
func requireFields(d model.Domain, prefix string, obj map[string]any, fields []string) error {
	for _, f := range fields {
		v, ok := obj[f]
		if !ok {
			return missingField(d, prefix+"."+f)
		}
		if v == nil {
			return malformed(d, prefix+"."+f, "value is null")
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case model.RawReport:
		return t, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	default:
		return nil, false
	}
}
