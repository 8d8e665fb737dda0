package collector

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/pkg/anthropic"
)

// messageText concatenates all text content blocks from a message response.
func messageText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// stripFences removes markdown code fences around an LLM JSON payload.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// jsonSlice cuts text down to the span between the first open delimiter and
// the last close delimiter, when both exist.
func jsonSlice(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// decodeLLMObject parses an LLM response expected to carry one JSON object.
// Output is tried as-is first, then through the repair library.
func decodeLLMObject[T any](text string) (*T, error) {
	block := jsonSlice(stripFences(text), '{', '}')

	var out T
	if err := json.Unmarshal([]byte(block), &out); err == nil {
		return &out, nil
	}

	repaired, err := jsonrepair.RepairJSON(block)
	if err != nil {
		return nil, eris.Wrap(err, "repair llm json")
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, eris.Wrap(err, "parse llm json object")
	}
	return &out, nil
}

// decodeLLMArray parses an LLM response expected to carry a JSON array.
// Truncated arrays (max_tokens cutoffs) go through repairJSONArray; anything
// still unparseable goes through the repair library.
func decodeLLMArray[T any](text string) ([]T, error) {
	block := jsonSlice(stripFences(text), '[', ']')

	var out []T
	if err := json.Unmarshal([]byte(block), &out); err == nil {
		return out, nil
	}

	if repaired := repairJSONArray(block); repaired != "" {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, nil
		}
	}

	repaired, err := jsonrepair.RepairJSON(block)
	if err != nil {
		return nil, eris.Wrap(err, "repair llm json")
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, eris.Wrap(err, "parse llm json array")
	}
	return out, nil
}

// repairJSONArray recovers a JSON array of objects cut off mid-stream. It
// locates the outermost '[', scans forward tracking brace depth and string
// state, truncates after the last complete top-level object, and closes the
// array. A valid array passes through equal to its input.
func repairJSONArray(text string) string {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return ""
	}

	inString := false
	escaped := false
	depth := 0
	lastComplete := -1 // index just past the '}' closing the last whole object

	for i := start + 1; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				lastComplete = i + 1
			}
		case ']':
			if depth == 0 {
				// Properly closed. Drop any trailing comma before the close.
				if lastComplete > 0 && strings.Trim(text[lastComplete:i], ", \t\r\n") == "" {
					return text[start:lastComplete] + "]"
				}
				return text[start : i+1]
			}
		}
	}

	if lastComplete < 0 {
		return "[]"
	}
	return text[start:lastComplete] + "]"
}
