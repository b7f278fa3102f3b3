package audio

import (
	"context"
	"errors"
	"io"
	"testing"
)

// scriptedMic yields a fixed sequence of blocks, then io.EOF.
type scriptedMic struct {
	blocks [][]byte
	err    error
}

func (m *scriptedMic) NextBlock() ([]byte, error) {
	if len(m.blocks) == 0 {
		if m.err != nil {
			return nil, m.err
		}
		return nil, io.EOF
	}
	block := m.blocks[0]
	m.blocks = m.blocks[1:]
	return block, nil
}

func TestCaptureForwardsBlocksUntilEOF(t *testing.T) {
	mic := &scriptedMic{blocks: [][]byte{
		pcmBytes(1, 2),
		pcmBytes(3, 4),
		pcmBytes(5, 6),
	}}

	var sent [][]byte
	p := NewCapturePipeline(mic, func(pcm []byte) error {
		sent = append(sent, pcm)
		return nil
	}, nil, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sent) != 3 {
		t.Fatalf("sent %d blocks, want 3", len(sent))
	}
}

func TestCaptureStopsOnContextCancel(t *testing.T) {
	blocks := 0
	mic := micFunc(func() ([]byte, error) {
		blocks++
		return pcmBytes(0, 0), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := NewCapturePipeline(mic, func(pcm []byte) error {
		if blocks >= 2 {
			cancel()
		}
		return nil
	}, nil, nil)

	err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}
	// Cooperative stop: the loop exits between blocks, not mid-read.
	if blocks > 3 {
		t.Errorf("captured %d blocks after cancel", blocks)
	}
}

func TestCapturePropagatesDeviceError(t *testing.T) {
	deviceErr := errors.New("stream torn down")
	mic := &scriptedMic{blocks: [][]byte{pcmBytes(1)}, err: deviceErr}

	p := NewCapturePipeline(mic, func([]byte) error { return nil }, nil, nil)
	err := p.Run(context.Background())
	if !errors.Is(err, deviceErr) {
		t.Fatalf("run returned %v, want wrapped device error", err)
	}
}

func TestCapturePropagatesSendError(t *testing.T) {
	sendErr := errors.New("connection is closed")
	mic := &scriptedMic{blocks: [][]byte{pcmBytes(1)}}

	p := NewCapturePipeline(mic, func([]byte) error { return sendErr }, nil, nil)
	err := p.Run(context.Background())
	if !errors.Is(err, sendErr) {
		t.Fatalf("run returned %v, want wrapped send error", err)
	}
}

func TestCaptureReportsLevels(t *testing.T) {
	mic := &scriptedMic{blocks: [][]byte{pcmBytes(16384, -16384)}}

	type level struct{ rms, peak float64 }
	var levels []level
	p := NewCapturePipeline(mic, func([]byte) error { return nil }, func(rms, peak float64) {
		levels = append(levels, level{rms, peak})
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("got %d level callbacks, want 1", len(levels))
	}
	if levels[0].rms < 0.49 || levels[0].rms > 0.51 {
		t.Errorf("rms = %.3f, want ~0.5", levels[0].rms)
	}
	if levels[0].peak < 0.49 || levels[0].peak > 0.51 {
		t.Errorf("peak = %.3f, want ~0.5", levels[0].peak)
	}
}

type micFunc func() ([]byte, error)

func (f micFunc) NextBlock() ([]byte, error) { return f() }
