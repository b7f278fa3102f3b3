package realtime

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/snailbrainx/openai-realtime-go/pkg/audio"
	"github.com/snailbrainx/openai-realtime-go/pkg/realtime/protocol"
)

// Coordinator implements barge-in. It is triggered either by user
// speech starting while assistant audio is rendering, or by a new
// response arriving while the previous one is still active.
//
// The flow is:
//  1. Mark the response canceled. The per-response delivery gate then
//     drops every further fragment for it.
//  2. Stop the playback buffer and read the rendered-sample count it
//     preserved.
//  3. Convert rendered samples to elapsed milliseconds at the output
//     sample rate.
//  4. Ask the server to truncate the assistant item to that duration.
//  5. Cancel the response server-side.
type Coordinator struct {
	registry   *responseRegistry
	playback   *audio.PlaybackBuffer
	sender     Sender
	sampleRate int
	logger     *slog.Logger
}

func newCoordinator(registry *responseRegistry, playback *audio.PlaybackBuffer, sender Sender, sampleRate int, logger *slog.Logger) *Coordinator {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry:   registry,
		playback:   playback,
		sender:     sender,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Interrupt stops playback of responseID and notifies the remote side.
// itemID is the last known assistant conversation item; when empty the
// truncate message is skipped because there is nothing to truncate.
//
// Interrupt is idempotent per response id: the cancel transition is a
// check-and-set under the registry lock, so a second trigger for the
// same response (for example new-response arrival right after
// user-speech) is a no-op and sends nothing. It reports whether an
// interruption actually happened.
func (c *Coordinator) Interrupt(responseID, itemID string) bool {
	if c == nil || responseID == "" {
		return false
	}
	if !c.registry.Cancel(responseID) {
		return false
	}

	// Capture the rendered count after stopping, before any reset.
	// Stop preserves the counter; only Reset zeroes it.
	c.playback.Stop()
	rendered := c.playback.RenderedSamples()
	audioEndMS := rendered * 1000 / int64(c.sampleRate)

	c.logger.Debug("interrupting response",
		"response_id", responseID,
		"rendered_samples", rendered,
		"audio_end_ms", audioEndMS,
	)

	if itemID != "" {
		truncate := protocol.ClientItemTruncate{
			EventID:      uuid.NewString(),
			Type:         protocol.ClientEventItemTruncate,
			ItemID:       itemID,
			ContentIndex: 0,
			AudioEndMS:   audioEndMS,
		}
		if err := c.sender.Send(truncate); err != nil {
			c.logger.Warn("send truncate failed", "item_id", itemID, "error", err)
		}
	} else {
		c.logger.Debug("no assistant item to truncate")
	}

	cancel := protocol.ClientResponseCancel{
		EventID:    uuid.NewString(),
		Type:       protocol.ClientEventResponseCancel,
		ResponseID: responseID,
	}
	if err := c.sender.Send(cancel); err != nil {
		c.logger.Warn("send response cancel failed", "response_id", responseID, "error", err)
	}

	return true
}
