package audio

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Sink is a raw PCM16LE output device. A sink is single-use: Start once,
// Write until done, Close.
type Sink interface {
	// Start opens the device for mono PCM16LE at the given sample rate.
	Start(sampleRate int) error
	// Write feeds raw PCM bytes to the device.
	Write(p []byte) error
	// Close releases the device. Closing an unstarted or already-closed
	// sink is a no-op.
	Close() error
}

// SinkFactory produces a fresh sink per playback.
type SinkFactory func() Sink

// FFPlayAvailable reports whether the ffplay binary is on PATH.
func FFPlayAvailable() bool {
	_, err := exec.LookPath("ffplay")
	return err == nil
}

// FFPlaySink plays PCM by piping it to an ffplay subprocess. The playback
// rate hint is realized upstream by scaling the sample rate handed to Start.
type FFPlaySink struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewFFPlaySink creates an unstarted ffplay sink.
func NewFFPlaySink() *FFPlaySink {
	return &FFPlaySink{}
}

// Start launches ffplay reading s16le mono audio from stdin.
func (s *FFPlaySink) Start(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("sink already started")
	}
	if _, err := exec.LookPath("ffplay"); err != nil {
		return errors.New("ffplay is required for speech playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}

	cmd := exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// Write feeds PCM bytes to ffplay.
func (s *FFPlaySink) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return errors.New("sink is not started")
	}
	_, err := s.stdin.Write(p)
	return err
}

// Close terminates the ffplay process. Safe to call repeatedly.
func (s *FFPlaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	return nil
}
