package calendarquery

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// ErrNoJSON is returned when no JSON object can be recovered from a completion.
var ErrNoJSON = errors.New("no json object found in completion")

type intentWire struct {
	QueryType          json.RawMessage `json:"query_type"`
	StartDatetime      json.RawMessage `json:"start_datetime"`
	StartDate          json.RawMessage `json:"start_date"`
	EndDatetime        json.RawMessage `json:"end_datetime"`
	EndDate            json.RawMessage `json:"end_date"`
	EventLimit         json.RawMessage `json:"event_limit"`
	TimeContext        json.RawMessage `json:"time_context"`
	Language           json.RawMessage `json:"language"`
	NeedsClarification json.RawMessage `json:"needs_clarification"`
	AmbiguityReason    json.RawMessage `json:"ambiguity_reason"`
}

// decodeIntent turns raw completion text into an intent. The whole response
// is tried first, then every balanced {...} substring in order.
func decodeIntent(raw string) (QueryIntent, error) {
	body := stripCodeFence(raw)
	if intent, err := unmarshalIntent([]byte(body)); err == nil {
		return intent, nil
	}
	for _, candidate := range braceObjects(body) {
		if intent, err := unmarshalIntent([]byte(candidate)); err == nil {
			return intent, nil
		}
	}
	return QueryIntent{}, ErrNoJSON
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func unmarshalIntent(data []byte) (QueryIntent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return QueryIntent{}, ErrNoJSON
	}
	var wire intentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return QueryIntent{}, err
	}

	start := coerceString(wire.StartDatetime)
	if start == "" {
		start = coerceString(wire.StartDate)
	}
	end := coerceString(wire.EndDatetime)
	if end == "" {
		end = coerceString(wire.EndDate)
	}

	return QueryIntent{
		QueryType:          ParseQueryType(coerceString(wire.QueryType)),
		StartExpr:          start,
		EndExpr:            end,
		EventLimit:         coerceInt(wire.EventLimit),
		TimeContext:        coerceString(wire.TimeContext),
		Language:           coerceString(wire.Language),
		NeedsClarification: coerceBool(wire.NeedsClarification),
		AmbiguityReason:    coerceString(wire.AmbiguityReason),
	}, nil
}

// braceObjects returns every balanced top-level {...} span, honouring JSON
// string quoting so braces inside values do not end a candidate early.
func braceObjects(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if end := matchBrace(s, i); end > i {
			out = append(out, s[i:end+1])
			i = end
		}
	}
	return out
}

func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func coerceString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	switch raw[0] {
	case '{', '[':
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func coerceInt(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		parsed, perr := strconv.ParseFloat(coerceString(raw), 64)
		if perr != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	// Out-of-range values still count as "present" so the validator clamps them.
	switch {
	case f > math.MaxInt32:
		f = math.MaxInt32
	case f < math.MinInt32:
		f = math.MinInt32
	}
	n := int(f)
	return &n
}

func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	switch strings.ToLower(coerceString(raw)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// normalizeLanguage reduces a model supplied tag to its base ISO-639 code.
func normalizeLanguage(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return fallback
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return fallback
	}
	return base.String()
}
