package generation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// parseResult turns raw model output into a Result. Two stages: strict JSON
// first, then the first top-level brace-delimited object found in the text
// (models occasionally wrap their JSON in prose or a code fence). prompt is
// used to synthesize a summary when the model omitted one.
func parseResult(raw, prompt string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, ErrEmptyResponse
	}

	var payload Result
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		inner, ok := firstJSONObject(raw)
		if !ok {
			return Result{}, ErrMalformedResponse
		}
		if err := json.Unmarshal([]byte(inner), &payload); err != nil {
			return Result{}, ErrMalformedResponse
		}
	}

	if payload.Answer == "" {
		payload.Answer = "Processing request..."
	}
	if payload.Summary == "" {
		payload.Summary = truncateSummary(prompt, 50)
	}
	return payload, nil
}

// firstJSONObject extracts the first balanced top-level {...} block,
// ignoring braces inside string literals.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func truncateSummary(prompt string, limit int) string {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) <= limit {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:limit]) + "..."
}
