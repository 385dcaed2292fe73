package oracle

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// extractJSONObject finds the first balanced JSON object in model output.
// Models wrap JSON in prose or markdown fences often enough that strict decoding is useless.
func extractJSONObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if gjson.Valid(candidate) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

// parseClassification decodes classifier output. A bare label without JSON is
// accepted with an unknown (NaN) confidence so the caller can apply its fallback.
func parseClassification(raw string) (*types.Classification, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		label := strings.TrimSpace(raw)
		if label == "" || strings.ContainsAny(label, "\n{}") {
			return nil, supporterrors.NewMalformedOracleOutputError("classify", "no JSON object in classifier output")
		}
		return &types.Classification{Intent: label, Confidence: math.NaN()}, nil
	}

	intent := gjson.Get(obj, "intent")
	if !intent.Exists() || intent.Type != gjson.String {
		return nil, supporterrors.NewMalformedOracleOutputError("classify", "classifier output has no intent label")
	}

	return &types.Classification{
		Intent:     intent.String(),
		Confidence: parseConfidence(gjson.Get(obj, "confidence")),
		Entities:   parseEntities(gjson.Get(obj, "entities")),
	}, nil
}

// parseConfidence accepts numbers and numeric strings, including percentages.
// Anything else yields NaN.
func parseConfidence(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		s := strings.TrimSpace(v.String())
		percent := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		if percent {
			f /= 100
		}
		return f
	default:
		return math.NaN()
	}
}

// parseEntities keeps scalar, non-null values. Nested values are ignored.
func parseEntities(v gjson.Result) types.Entities {
	out := types.Entities{}
	if !v.IsObject() {
		return out
	}
	v.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String, gjson.Number:
			out.Merge(types.Entities{key.String(): value.String()})
		case gjson.True, gjson.False, gjson.Null, gjson.JSON:
		}
		return true
	})
	return out
}

// parseExtraction decodes entity extraction output.
func parseExtraction(raw string) (types.Entities, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return nil, supporterrors.NewMalformedOracleOutputError("extract_entities", "no JSON object in extraction output")
	}
	if nested := gjson.Get(obj, "entities"); nested.IsObject() {
		return parseEntities(nested), nil
	}
	return parseEntities(gjson.Parse(obj)), nil
}

// ClampConfidence forces a reported confidence into [0, 1]. It reports false for NaN.
func ClampConfidence(c float64) (float64, bool) {
	if math.IsNaN(c) {
		return 0, false
	}
	return math.Max(0, math.Min(1, c)), true
}
