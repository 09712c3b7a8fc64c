// Package parser splits a model reply into a diagnosis and an optional
// structured correction.
package parser

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/prompt"
)

// Parsed is the result of splitting one model reply.
type Parsed struct {
	Diagnosis string
	Fix       *model.SuggestedFix
}

// Parse locates the fix marker in raw text. Everything before it (trimmed)
// is the diagnosis; the substring between the first '{' and last '}' after
// it is the correction payload. An unparseable payload drops the correction
// with a warning but never the diagnosis. Without a marker the whole reply
// is the diagnosis.
func Parse(raw, recordID string) Parsed {
	idx := strings.Index(raw, prompt.FixMarker)
	if idx < 0 {
		return Parsed{Diagnosis: strings.TrimSpace(raw)}
	}

	diagnosis := strings.TrimSpace(raw[:idx])
	candidate := raw[idx+len(prompt.FixMarker):]

	payload, ok := braceSpan(candidate)
	if !ok {
		zap.L().Warn("parser: fix marker without payload",
			zap.String("record", recordID),
		)
		return Parsed{Diagnosis: diagnosis}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		zap.L().Warn("parser: dropping unparseable correction payload",
			zap.String("record", recordID),
			zap.Error(err),
		)
		return Parsed{Diagnosis: diagnosis}
	}

	fix := &model.SuggestedFix{Fields: fields}
	if conf, ok := popConfidence(fields); ok {
		fix.Confidence = &conf
	}
	return Parsed{Diagnosis: diagnosis, Fix: fix}
}

// braceSpan extracts the substring between the first '{' and the last '}'.
// Tolerates conversational wrapping and markdown fences around the payload.
func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// popConfidence removes the confidence key from the payload and returns it
// as an int when numeric. JSON numbers decode as float64; integral strings
// or other shapes are not accepted.
func popConfidence(fields map[string]any) (int, bool) {
	raw, present := fields["confidence"]
	if !present {
		return 0, false
	}
	delete(fields, "confidence")

	f, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
