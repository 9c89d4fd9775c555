package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&UpstreamError{Status: 429}, CodeRateLimited},
		{fmt.Errorf("wrap: %w", &UpstreamError{Status: 401}), CodeAuthInvalid},
		{&UpstreamError{Status: 503}, CodeUpstreamUnavailable},
		{&UpstreamError{Status: 404}, CodeUpstreamError},
		{NewMalformedOutput("{", true, errors.New("eof")), CodeMalformedOutput},
		{fmt.Errorf("x: %w", ErrStreamRead), CodeStreamRead},
		{context.DeadlineExceeded, CodeTimeout},
		{context.Canceled, CodeCanceled},
		{errors.New("other"), CodeInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFromCodeRoundTrip(t *testing.T) {
	for _, code := range []string{CodeRateLimited, CodeAuthInvalid, CodeUpstreamUnavailable, CodeMalformedOutput, CodeTimeout, CodeStreamRead} {
		if got := Classify(FromCode(code, "detail")); got != code {
			t.Errorf("FromCode(%q) classified as %q", code, got)
		}
	}
}

func TestMalformedOutputPrefixBounded(t *testing.T) {
	raw := strings.Repeat("é", MaxRawPrefix)
	err := NewMalformedOutput(raw, false, errors.New("bad"))
	if len(err.RawPrefix) > MaxRawPrefix {
		t.Fatalf("prefix too long: %d", len(err.RawPrefix))
	}
	if !strings.HasPrefix(raw, err.RawPrefix) || strings.ContainsRune(err.RawPrefix, '�') {
		t.Fatalf("prefix must be a valid UTF-8 prefix of the raw text")
	}
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput")
	}
}
