// README: Repair pass for buffered model output (fences, missing/trailing commas, truncation).
package stream

import (
	"encoding/json"
	"strings"

	"itinera/internal/ai"
	"itinera/internal/itinerary"
	"itinera/internal/logger"
)

// ParseDocument repairs a buffered completion and decodes it. When the text
// still does not parse, the error is an *ai.MalformedOutputError.
func ParseDocument(c *ai.Completion) (*itinerary.Generated, error) {
	fixed := Repair(c.Text, c.Truncated)
	var doc itinerary.Document
	if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
		logger.Warn("repair pass failed", "truncated", c.Truncated, "bytes", len(c.Text), "err", err)
		return nil, ai.NewMalformedOutput(c.Text, c.Truncated, err)
	}
	doc.Days = itinerary.SortDays(doc.Days)
	return &itinerary.Generated{Document: doc, Raw: json.RawMessage(fixed)}, nil
}

// Repair applies the fixes for known formatting defects. Closers are only
// appended when the provider reported a length cut.
func Repair(raw string, truncated bool) string {
	s := stripFence(raw)
	s = insertMissingCommas(s)
	if truncated {
		s = closeOpen(s)
	}
	return stripTrailingCommas(s)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimLeft(s, "`")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	if i := strings.IndexAny(s, "{["); i > 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}

// scanner tracks whether a byte offset sits inside a string literal.
type scanner struct {
	inString bool
	escaped  bool
}

// step consumes c and reports whether it was part of a string literal,
// including its quotes.
func (sc *scanner) step(c byte) bool {
	if sc.inString {
		switch {
		case sc.escaped:
			sc.escaped = false
		case c == '\\':
			sc.escaped = true
		case c == '"':
			sc.inString = false
		}
		return true
	}
	if c == '"' {
		sc.inString = true
		return true
	}
	return false
}

// insertMissingCommas adds a comma between a value that ends a line and the
// string, object or array that starts the next one.
func insertMissingCommas(s string) string {
	out := make([]byte, 0, len(s)+16)
	var sc scanner
	valueEnd := -1 // offset in out just after the last value, -1 if none pending
	newline := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		wasString := sc.inString
		if sc.step(c) {
			if !wasString && valueEnd >= 0 && newline {
				out = insertByte(out, valueEnd, ',')
			}
			out = append(out, c)
			if wasString && !sc.inString {
				valueEnd, newline = len(out), false
			} else if !wasString {
				valueEnd, newline = -1, false
			}
			continue
		}
		switch c {
		case ' ', '\t', '\r':
		case '\n':
			newline = valueEnd >= 0
		case '{', '[':
			if valueEnd >= 0 && newline {
				out = insertByte(out, valueEnd, ',')
			}
			valueEnd, newline = -1, false
		case '}', ']':
			out = append(out, c)
			valueEnd, newline = len(out), false
			continue
		default:
			valueEnd, newline = -1, false
		}
		out = append(out, c)
	}
	return string(out)
}

func insertByte(b []byte, at int, c byte) []byte {
	b = append(b, 0)
	copy(b[at+1:], b[at:])
	b[at] = c
	return b
}

// stripTrailingCommas drops commas directly followed by a closing bracket or brace.
func stripTrailingCommas(s string) string {
	out := make([]byte, 0, len(s))
	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.step(c) || c != ',' {
			out = append(out, c)
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
			j++
		}
		if j < len(s) && (s[j] == '}' || s[j] == ']') {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// closeOpen appends the closers for every bracket and brace still open
// outside string literals, innermost first. An unterminated string is closed
// before anything else.
func closeOpen(s string) string {
	var sc scanner
	var open []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.step(c) {
			continue
		}
		switch c {
		case '{':
			open = append(open, '}')
		case '[':
			open = append(open, ']')
		case '}', ']':
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}
	if sc.inString {
		if sc.escaped {
			s = s[:len(s)-1]
		}
		s += `"`
	}
	var b strings.Builder
	b.WriteString(s)
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteByte(open[i])
	}
	return b.String()
}
