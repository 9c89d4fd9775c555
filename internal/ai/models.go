package ai

type Mode string

const (
	ModeBuffered  Mode = "buffered"
	ModeStreaming Mode = "streaming"
)

// Prompt is the (system instruction, user prompt) pair sent to the model.
type Prompt struct {
	System string
	User   string
	Mode   Mode
}

// Completion is the single document text returned by a buffered request.
type Completion struct {
	Text         string
	FinishReason string
	// Truncated reports that the model stopped on its output token limit.
	Truncated bool
}

// Delta is the incremental text carried by one streaming frame.
type Delta struct {
	Text         string
	FinishReason string
	// Done marks the provider's end-of-stream sentinel.
	Done bool
}
