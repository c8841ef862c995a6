// Package llmtext cleans up model replies that are supposed to contain JSON.
package llmtext

import "strings"

// StripFences removes a surrounding markdown code fence such as ```json ... ```.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	// drop the language hint
	if idx := strings.IndexByte(t, '\n'); idx != -1 {
		t = t[idx+1:]
	}
	if j := strings.LastIndex(t, "```"); j != -1 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}

// Extract returns the first balanced JSON value that opens with open ('[' or '{'),
// or "" when there is none. Brackets inside string literals are ignored.
func Extract(s string, open byte) string {
	var closer byte
	switch open {
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	default:
		return ""
	}

	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
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
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Normalize strips fences and, when the text does not already start with open,
// pulls out the first balanced value of that kind.
func Normalize(s string, open byte) string {
	t := StripFences(s)
	if strings.HasPrefix(t, string(open)) {
		return t
	}
	if v := Extract(t, open); v != "" {
		return v
	}
	return t
}
