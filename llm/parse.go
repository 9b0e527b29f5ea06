package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"clementus360/clinic-assistant/config"
)

var ErrNoJSON = errors.New("no valid JSON found in response")

var (
	codeBlockRegex     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRegex   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
)

type extractStrategy struct {
	name string
	fn   func(string) (string, bool)
}

// Ordered from strictest to most forgiving.
var extractStrategies = []extractStrategy{
	{"complete", extractCompleteJSON},
	{"code_block", extractJSONFromCodeBlock},
	{"braces", extractJSONFromBraces},
	{"partial", extractPartialJSON},
	{"repair", extractJSONWithRepair},
}

// ParseStructured pulls a JSON object out of free-form model output and
// decodes it into T. Each extraction strategy is tried in turn until one
// yields a value that decodes and passes validate.
func ParseStructured[T any](text string, validate func(T) error) (T, error) {
	var zero T
	for _, strategy := range extractStrategies {
		jsonStr, found := strategy.fn(text)
		if !found {
			continue
		}

		var structured T
		if err := json.Unmarshal([]byte(jsonStr), &structured); err != nil {
			config.Logger.Debugf("JSON unmarshaling failed (%s): %v", strategy.name, err)
			continue
		}
		if validate != nil {
			if err := validate(structured); err != nil {
				config.Logger.Debugf("JSON parsed but validation failed (%s): %v", strategy.name, err)
				continue
			}
		}
		config.Logger.Debugf("Parsed JSON using %s strategy", strategy.name)
		return structured, nil
	}
	return zero, ErrNoJSON
}

// ExtractJSON returns the first JSON object any strategy can find.
func ExtractJSON(text string) (string, bool) {
	for _, strategy := range extractStrategies {
		if jsonStr, found := strategy.fn(text); found {
			return jsonStr, true
		}
	}
	return "", false
}

func extractCompleteJSON(text string) (string, bool) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "{") && json.Valid([]byte(cleaned)) {
		return cleaned, true
	}
	return "", false
}

// Matches ```json ... ``` or ``` ... ```.
func extractJSONFromCodeBlock(text string) (string, bool) {
	for _, matches := range codeBlockRegex.FindAllStringSubmatch(text, -1) {
		body := matches[1]
		start := strings.Index(body, "{")
		if start == -1 {
			continue
		}
		if candidate, ok := balancedObject(body, start); ok && json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// extractJSONFromBraces returns the largest balanced object in the text that
// is valid JSON once common formatting slips are fixed.
func extractJSONFromBraces(text string) (string, bool) {
	fixed := fixCommonJSONIssues(text)

	var best string
	for i := 0; i < len(fixed); i++ {
		if fixed[i] != '{' {
			continue
		}
		candidate, ok := balancedObject(fixed, i)
		if !ok {
			continue
		}
		if json.Valid([]byte(candidate)) && len(candidate) > len(best) {
			best = candidate
			// Nothing nested inside can be larger.
			i += len(candidate) - 1
		}
	}
	return best, best != ""
}

// extractPartialJSON collects the lines from the first one opening an object
// to the first one closing it.
func extractPartialJSON(text string) (string, bool) {
	var jsonLines []string
	inJSON := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inJSON && strings.HasPrefix(trimmed, "{") {
			inJSON = true
		}
		if !inJSON {
			continue
		}
		jsonLines = append(jsonLines, line)
		if strings.HasSuffix(trimmed, "}") && !strings.Contains(trimmed, "{") {
			break
		}
	}

	if len(jsonLines) == 0 {
		return "", false
	}
	candidate := fixCommonJSONIssues(strings.Join(jsonLines, "\n"))
	if json.Valid([]byte(candidate)) {
		return candidate, true
	}
	return "", false
}

func extractJSONWithRepair(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	fragment := text[start:]
	if candidate, ok := balancedObject(fragment, 0); ok {
		fragment = candidate
	}

	repaired := repairMalformedJSON(fixCommonJSONIssues(fragment))
	if json.Valid([]byte(repaired)) {
		return repaired, true
	}
	return "", false
}

// fixCommonJSONIssues removes trailing commas and undoes a layer of quote
// escaping when the whole payload arrived escaped.
func fixCommonJSONIssues(text string) string {
	if !strings.Contains(text, `{"`) && strings.Contains(text, `{\"`) {
		text = strings.ReplaceAll(text, `\"`, `"`)
	}
	return trailingCommaRegex.ReplaceAllString(text, "$1")
}

// repairMalformedJSON quotes bare keys and closes whatever strings, arrays
// and objects a truncated reply left open.
func repairMalformedJSON(text string) string {
	text = unquotedKeyRegex.ReplaceAllString(text, `$1"$2":`)

	var open []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		char := text[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch char {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch char {
		case '"':
			inString = true
		case '{', '[':
			open = append(open, char)
		case '}', ']':
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return trailingCommaRegex.ReplaceAllString(b.String(), "$1")
}

// balancedObject returns the object starting at text[start] up to its
// matching close brace, ignoring braces inside strings.
func balancedObject(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		char := text[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch char {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch char {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// extractStringField finds "key": "value" in broken JSON and unescapes value.
func extractStringField(text, key string) (string, bool) {
	fieldRegex := regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*"((?:[^"\\]|\\.)*)"`, regexp.QuoteMeta(key)))
	matches := fieldRegex.FindStringSubmatch(text)
	if len(matches) < 2 {
		return "", false
	}
	var value string
	if err := json.Unmarshal([]byte(`"`+matches[1]+`"`), &value); err != nil {
		return matches[1], true
	}
	return value, true
}
