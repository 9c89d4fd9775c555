package ai

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

var dataPrefix = []byte("data:")

// sseStream reads `data:` frames from a text/event-stream response body.
type sseStream struct {
	ctx      context.Context
	provider string
	body     io.ReadCloser
	sc       *bufio.Scanner
	decode   func([]byte) (Delta, error)
}

func newSSEStream(ctx context.Context, provider string, body io.ReadCloser, decode func([]byte) (Delta, error)) *sseStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &sseStream{ctx: ctx, provider: provider, body: body, sc: sc, decode: decode}
}

func (s *sseStream) Recv() ([]byte, error) {
	for s.sc.Scan() {
		line := s.sc.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			// blank separators, comments, event: and id: fields
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			continue
		}
		return append([]byte(nil), payload...), nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, s.readError(err)
	}
	if err := s.ctx.Err(); err != nil {
		return nil, s.readError(err)
	}
	return nil, io.EOF
}

func (s *sseStream) Decode(frame []byte) (Delta, error) {
	return s.decode(frame)
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func (s *sseStream) readError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(s.ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", s.provider, ErrTimeout, err)
	case errors.Is(s.ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", s.provider, context.Canceled)
	}
	return fmt.Errorf("%s: %w: %v", s.provider, ErrStreamRead, err)
}
