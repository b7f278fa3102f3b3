package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultBlockDurationMS is the capture block size. One block is the
// only buffering between the microphone and the network send.
const DefaultBlockDurationMS = 250

// MicSource yields fixed-duration PCM blocks from a microphone.
// NextBlock blocks until a full block is available and returns io.EOF
// when the device ends.
type MicSource interface {
	NextBlock() ([]byte, error)
}

// CapturePipeline forwards microphone blocks to the transport as they
// arrive. Stopping is cooperative: the context is checked between
// blocks, never mid-read.
type CapturePipeline struct {
	source  MicSource
	send    func(pcm []byte) error
	onLevel func(rms, peak float64)
	logger  *slog.Logger
}

// NewCapturePipeline wires a microphone source to a send function.
// onLevel, when non-nil, receives the RMS energy and peak amplitude of
// each block.
func NewCapturePipeline(source MicSource, send func(pcm []byte) error, onLevel func(rms, peak float64), logger *slog.Logger) *CapturePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapturePipeline{
		source:  source,
		send:    send,
		onLevel: onLevel,
		logger:  logger,
	}
}

// Run pulls blocks until the context is canceled or the source ends.
// A device or send error is returned so the caller can propagate the
// global stop signal.
func (p *CapturePipeline) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := p.source.NextBlock()
		if errors.Is(err, io.EOF) {
			p.logger.Debug("microphone source ended")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read microphone block: %w", err)
		}
		if len(block) == 0 {
			continue
		}

		if p.onLevel != nil {
			p.onLevel(Levels(block))
		}
		if err := p.send(block); err != nil {
			return fmt.Errorf("send microphone block: %w", err)
		}
	}
}
