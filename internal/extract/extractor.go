// README: Incremental section extractor over a partially generated itinerary JSON document.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"

	"itinera/internal/itinerary"
)

var (
	stringFields = []struct {
		kind    itinerary.Kind
		pattern *regexp.Regexp
	}{
		{itinerary.KindSummary, regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)+)"`)},
		{itinerary.KindDestination, regexp.MustCompile(`"destination"\s*:\s*"((?:[^"\\]|\\.)+)"`)},
	}
	dayKey = regexp.MustCompile(`"day"\s*:\s*(\d+)`)
)

// Extractor accumulates completion text and reports sections as soon as they
// are complete. Every section key is reported at most once.
//
// An Extractor is owned by a single session and is not safe for concurrent use.
type Extractor struct {
	buf       []byte
	emitted   map[string]struct{}
	enclosing map[int]int
}

func New() *Extractor {
	return &Extractor{
		emitted:   make(map[string]struct{}),
		enclosing: make(map[int]int),
	}
}

// AddChunk appends text to the buffer.
func (x *Extractor) AddChunk(chunk string) {
	x.buf = append(x.buf, chunk...)
}

func (x *Extractor) Len() int { return len(x.buf) }

// Text returns everything received so far.
func (x *Extractor) Text() string { return string(x.buf) }

func (x *Extractor) Emitted(key string) bool {
	_, ok := x.emitted[key]
	return ok
}

type found struct {
	end int
	ev  itinerary.Event
}

// Poll returns the sections completed since the previous call, ordered by the
// buffer offset at which they completed.
func (x *Extractor) Poll() []itinerary.Event {
	var candidates []found
	for _, f := range stringFields {
		if x.Emitted(string(f.kind)) {
			continue
		}
		if c, ok := x.stringField(f.kind, f.pattern); ok {
			candidates = append(candidates, c)
		}
	}
	candidates = append(candidates, x.days()...)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].end < candidates[j].end })
	events := make([]itinerary.Event, 0, len(candidates))
	for _, c := range candidates {
		key := c.ev.Key()
		if x.Emitted(key) {
			continue
		}
		x.emitted[key] = struct{}{}
		events = append(events, c.ev)
	}
	return events
}

func (x *Extractor) stringField(kind itinerary.Kind, pattern *regexp.Regexp) (found, bool) {
	m := pattern.FindSubmatchIndex(x.buf)
	if m == nil {
		return found{}, false
	}
	raw := x.buf[m[2]:m[3]]
	text := string(raw)
	var decoded string
	if err := json.Unmarshal([]byte(`"`+text+`"`), &decoded); err == nil {
		text = decoded
	}
	ev := itinerary.Event{Kind: kind, Text: text}
	return found{end: m[1] - 1, ev: ev}, true
}

func (x *Extractor) days() []found {
	var out []found
	for _, m := range dayKey.FindAllSubmatchIndex(x.buf, -1) {
		if m[1] == len(x.buf) {
			// the number may still be growing
			continue
		}
		n, err := strconv.Atoi(string(x.buf[m[2]:m[3]]))
		if err != nil || n <= 0 || x.Emitted(dayKeyOf(n)) {
			continue
		}
		start, ok := x.enclosingObject(m[0])
		if !ok {
			continue
		}
		end, ok := scanObject(x.buf, start)
		if !ok {
			continue
		}
		span := x.buf[start : end+1]
		var probe struct {
			Day *int `json:"day"`
		}
		if err := json.Unmarshal(span, &probe); err != nil || probe.Day == nil || *probe.Day != n {
			continue
		}
		payload := make(json.RawMessage, len(span))
		copy(payload, span)
		out = append(out, found{end: end, ev: itinerary.DayEvent(n, payload)})
	}
	return out
}

func dayKeyOf(n int) string {
	return itinerary.DayEvent(n, nil).Key()
}

// enclosingObject finds the '{' that opens the object containing the key at
// offset at. The prefix before at never changes, so results are cached.
func (x *Extractor) enclosingObject(at int) (int, bool) {
	if start, ok := x.enclosing[at]; ok {
		return start, start >= 0
	}
	start := enclosingBrace(x.buf, at)
	x.enclosing[at] = start
	return start, start >= 0
}

func enclosingBrace(buf []byte, at int) int {
	var stack []int
	inString, escaped := false, false
	for i := 0; i < at; i++ {
		c := buf[i]
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
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString || len(stack) == 0 || buf[stack[len(stack)-1]] != '{' {
		return -1
	}
	return stack[len(stack)-1]
}

// scanObject walks forward from the '{' at start and returns the offset of
// the '}' that brings the depth back to zero.
func scanObject(buf []byte, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(buf); i++ {
		c := buf[i]
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
				return i, true
			}
		}
	}
	return 0, false
}
