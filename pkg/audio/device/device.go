// Package device wraps PortAudio host-device access: enumeration,
// selection by name, a blocking microphone source and a callback-driven
// speaker sink.
package device

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var initMu sync.Mutex

// Initialize starts the PortAudio host layer. Callers must pair it
// with Terminate.
func Initialize() error {
	initMu.Lock()
	defer initMu.Unlock()
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio initialize: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio host layer.
func Terminate() error {
	initMu.Lock()
	defer initMu.Unlock()
	return portaudio.Terminate()
}

// Info describes one host audio device.
type Info struct {
	Index             int
	Name              string
	MaxInputs         int
	MaxOutputs        int
	DefaultSampleRate float64
}

// List enumerates the host's audio devices.
func List() ([]Info, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	infos := make([]Info, 0, len(devices))
	for i, dev := range devices {
		infos = append(infos, Info{
			Index:             i,
			Name:              dev.Name,
			MaxInputs:         dev.MaxInputChannels,
			MaxOutputs:        dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
		})
	}
	return infos, nil
}

func findInput(name string) (*portaudio.DeviceInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), strings.ToLower(name)) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", name)
}

func findOutput(name string) (*portaudio.DeviceInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("default output device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.MaxOutputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), strings.ToLower(name)) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no output device matching %q", name)
}

// Mic is a blocking mono PCM16 capture stream.
type Mic struct {
	stream *portaudio.Stream
	buf    []int16
	closed bool
	mu     sync.Mutex
}

// OpenMic opens a mono capture stream on the named device (substring
// match, empty for the host default) producing blocks of blockFrames
// samples at sampleRate.
func OpenMic(name string, sampleRate, blockFrames int) (*Mic, error) {
	dev, err := findInput(name)
	if err != nil {
		return nil, err
	}
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = blockFrames

	buf := make([]int16, blockFrames)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open capture stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start capture stream: %w", err)
	}
	return &Mic{stream: stream, buf: buf}, nil
}

// NextBlock reads one block of samples and returns it as little-endian
// PCM16 bytes. After Close it returns io.EOF.
func (m *Mic) NextBlock() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, io.EOF
	}
	err := m.stream.Read()
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("read capture stream: %w", err)
	}
	out := make([]byte, len(m.buf)*2)
	for i, s := range m.buf {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out, nil
}

// Close stops and releases the capture stream.
func (m *Mic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	_ = m.stream.Stop()
	return m.stream.Close()
}

// Speaker is a callback-driven mono PCM16 playback stream. The render
// function fills each output buffer; it runs on the PortAudio callback
// goroutine and must not block.
type Speaker struct {
	stream *portaudio.Stream
	closed bool
	mu     sync.Mutex
}

// OpenSpeaker opens a mono playback stream on the named device
// (substring match, empty for the host default) at sampleRate, pulling
// samples from render.
func OpenSpeaker(name string, sampleRate int, render func(out []int16)) (*Speaker, error) {
	dev, err := findOutput(name)
	if err != nil {
		return nil, err
	}
	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = 1
	params.SampleRate = float64(sampleRate)

	stream, err := portaudio.OpenStream(params, func(out []int16) {
		render(out)
	})
	if err != nil {
		return nil, fmt.Errorf("open playback stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start playback stream: %w", err)
	}
	return &Speaker{stream: stream}, nil
}

// Close stops and releases the playback stream.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stream.Stop()
	return s.stream.Close()
}
