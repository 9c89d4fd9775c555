// README: SSE framing for section events (server writer, client reader).
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-contrib/sse"

	"itinera/internal/itinerary"
)

// WriteEvent writes ev as one `data:` frame.
func WriteEvent(w io.Writer, ev itinerary.Event) error {
	return sse.Encode(w, sse.Event{Data: ev})
}

// EventReader decodes `data:` frames written by WriteEvent.
type EventReader struct {
	sc *bufio.Scanner
}

func NewEventReader(r io.Reader) *EventReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &EventReader{sc: sc}
}

// Next returns the next event, or io.EOF when the stream ends cleanly.
// Multi-line data fields are joined with newlines as SSE requires.
func (r *EventReader) Next() (itinerary.Event, error) {
	var data []byte
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			if len(data) > 0 {
				return decodeFrame(data)
			}
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimPrefix(line[len("data:"):], []byte(" "))
		if len(data) > 0 {
			data = append(data, '\n')
		}
		data = append(data, payload...)
	}
	if err := r.sc.Err(); err != nil {
		return itinerary.Event{}, err
	}
	if len(bytes.TrimSpace(data)) > 0 {
		return decodeFrame(data)
	}
	return itinerary.Event{}, io.EOF
}

func decodeFrame(data []byte) (itinerary.Event, error) {
	var ev itinerary.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return itinerary.Event{}, fmt.Errorf("decode event frame: %w", err)
	}
	return ev, nil
}
