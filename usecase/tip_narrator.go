package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/repositories"
)

// Tips repeat, so synthesized audio is kept for this many of them.
const maxCachedTips = 64

// TipNarrator speaks tips through a TextToSpeech and caches the result
type TipNarrator struct {
	tts         repositories.TextToSpeech
	contentType string
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[string][][]byte
	order []string
}

// NewTipNarrator creates a narrator
func NewTipNarrator(tts repositories.TextToSpeech, logger *zap.Logger) *TipNarrator {
	return &TipNarrator{
		tts:         tts,
		contentType: tts.ContentType(),
		logger:      logger,
		cache:       make(map[string][][]byte),
	}
}

// Narrate streams the audio for tip
func (n *TipNarrator) Narrate(ctx context.Context, tip string) (string, <-chan []byte, error) {
	if chunks, ok := n.cached(tip); ok {
		out := make(chan []byte, len(chunks))
		for _, c := range chunks {
			out <- c
		}
		close(out)
		return n.contentType, out, nil
	}

	audio, err := n.tts.ConvertTextToSpeech(ctx, tip)
	if err != nil {
		return "", nil, fmt.Errorf("failed to synthesize tip: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)

		var chunks [][]byte
		for chunk := range audio {
			chunks = append(chunks, chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Drain so the producer can finish.
				for range audio {
				}
				return
			}
		}
		if ctx.Err() != nil || len(chunks) == 0 {
			return
		}
		n.store(tip, chunks)
	}()
	return n.contentType, out, nil
}

func (n *TipNarrator) cached(tip string) ([][]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	chunks, ok := n.cache[tip]
	return chunks, ok
}

func (n *TipNarrator) store(tip string, chunks [][]byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.cache[tip]; ok {
		return
	}
	if len(n.order) >= maxCachedTips {
		oldest := n.order[0]
		n.order = n.order[1:]
		delete(n.cache, oldest)
	}
	n.cache[tip] = chunks
	n.order = append(n.order, tip)
	n.logger.Debug("Cached tip audio", zap.Int("chunks", len(chunks)), zap.Int("cached", len(n.order)))
}
