package repositories

import "context"

// TextToSpeech turns a tip into streamed audio
type TextToSpeech interface {
	// ConvertTextToSpeech streams audio chunks. The channel is closed when the
	// audio is complete or ctx is done.
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
	// ContentType is the MIME type of the produced audio
	ContentType() string
}
