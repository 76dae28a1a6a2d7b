package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// StripFences removes a surrounding markdown code fence, if any, and
// trims whitespace. Models routinely wrap JSON payloads in ```json
// blocks despite instructions not to.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// ParseJSONResponse parses a JSON object response from an LLM, handling
// markdown code blocks. Returns nil if the payload is not valid JSON.
func ParseJSONResponse(text string) map[string]any {
	text = StripFences(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}

	return result
}

// ParseJSONArray parses a JSON array response from an LLM into raw
// elements. It strips code fences, then trims any prose before the
// first '[' and after the last ']'. If the array as a whole fails to
// parse, it recovers element by element so one malformed entry does
// not discard the rest.
func ParseJSONArray(text string) []json.RawMessage {
	text = StripFences(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		return nil
	}
	text = text[start : end+1]

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err == nil {
		return elements
	}

	return recoverArrayElements(text)
}

// recoverArrayElements scans a broken JSON array for individually
// parseable object elements.
func recoverArrayElements(text string) []json.RawMessage {
	var elements []json.RawMessage
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := text[start : i+1]
					if json.Valid([]byte(candidate)) {
						elements = append(elements, json.RawMessage(candidate))
					} else {
						log.Printf("Skipping malformed array element at offset %d", start)
					}
					start = -1
				}
			}
		}
	}
	return elements
}
