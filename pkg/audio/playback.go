// Package audio provides the interrupt-safe playback buffer, the
// microphone capture pipeline, and the PCM wire codec for the realtime
// voice client. All PCM is 16-bit signed little-endian mono.
package audio

import "sync"

// DefaultSampleRate is the fixed output sample rate of the realtime
// audio stream.
const DefaultSampleRate = 24000

const bytesPerSample = 2

// PlaybackBuffer accumulates PCM samples destined for the speaker and
// drains them at device callback cadence. It keeps an exact count of
// samples handed to the device since the last reset; that count is the
// ground truth for truncation timing after an interruption.
//
// One mutex covers every operation, so enqueue, render, reset, stop
// and snapshot never interleave partially. Render runs on the device
// callback thread and must stay cheap.
type PlaybackBuffer struct {
	mu             sync.Mutex
	pending        []byte
	rendered       int64
	generation     uint64
	stopped        bool
	lastDataFrames int
}

// NewPlaybackBuffer returns an empty, running playback buffer.
func NewPlaybackBuffer() *PlaybackBuffer {
	return &PlaybackBuffer{}
}

// Enqueue appends PCM samples to the pending buffer. Samples enqueued
// after Stop are dropped; a Reset starts the next response clean.
func (b *PlaybackBuffer) Enqueue(pcm []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueueLocked(pcm)
}

// EnqueueAt appends PCM samples only if the buffer is still on the
// given generation. A caller that snapshots Generation before its
// validity check is thereby protected against a Reset sneaking in
// between the check and the enqueue: the reset bumps the generation
// and the stale delivery is rejected under the buffer's own mutex. It
// reports whether the samples were accepted.
func (b *PlaybackBuffer) EnqueueAt(generation uint64, pcm []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if generation != b.generation || b.stopped || len(pcm) == 0 {
		return false
	}
	b.pending = append(b.pending, pcm...)
	return true
}

// Generation identifies the current reset epoch of the buffer.
func (b *PlaybackBuffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

func (b *PlaybackBuffer) enqueueLocked(pcm []byte) {
	if b.stopped || len(pcm) == 0 {
		return
	}
	b.pending = append(b.pending, pcm...)
}

// Render fills out with up to len(out) frames from the front of the
// pending buffer, padding with silence when data runs short. It
// returns the number of data (non-silence) frames emitted.
//
// While the buffer is running, the rendered counter advances by the
// full frame count including silence padding: silence still occupies
// wall-clock time at the device, which is what truncation accounting
// measures. A stopped buffer emits silence and leaves the counter
// untouched.
func (b *PlaybackBuffer) Render(out []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		for i := range out {
			out[i] = 0
		}
		b.lastDataFrames = 0
		return 0
	}

	frames := len(out)
	dataFrames := len(b.pending) / bytesPerSample
	if dataFrames > frames {
		dataFrames = frames
	}
	for i := 0; i < dataFrames; i++ {
		out[i] = int16(b.pending[2*i]) | int16(b.pending[2*i+1])<<8
	}
	for i := dataFrames; i < frames; i++ {
		out[i] = 0
	}
	b.pending = b.pending[dataFrames*bytesPerSample:]

	b.rendered += int64(frames)
	b.lastDataFrames = dataFrames
	return dataFrames
}

// Reset clears pending samples and zeroes the rendered counter. It is
// used when a new response begins so the new turn starts from a clean
// slate. Calling Reset twice in a row yields the same empty state as
// once.
func (b *PlaybackBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
	b.rendered = 0
	b.generation++
	b.stopped = false
	b.lastDataFrames = 0
}

// Stop halts rendering and clears pending samples without zeroing the
// rendered counter. The counter must survive until the interruption
// coordinator has read it.
func (b *PlaybackBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.pending = nil
	b.lastDataFrames = 0
}

// RenderedSamples returns the rendered-sample counter without mutating
// state.
func (b *PlaybackBuffer) RenderedSamples() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rendered
}

// Buffered returns the number of pending samples not yet rendered.
func (b *PlaybackBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) / bytesPerSample
}

// Idle reports whether the pending buffer is empty and the most recent
// render emitted no data frames. The playback delivery loop uses it to
// clear the assistant-speaking indicator.
func (b *PlaybackBuffer) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) == 0 && b.lastDataFrames == 0
}
