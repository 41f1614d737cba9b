package voice

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
)

// CaptureSampleRate is the microphone capture rate in Hz (PCM16LE mono).
const CaptureSampleRate = 16000

// Source is a microphone audio source producing raw PCM16LE mono frames.
type Source interface {
	Start() error
	Read(p []byte) (int, error)
	Close() error
}

// SourceFactory opens a fresh source per capture cycle. A nil factory means
// the platform has no capture capability.
type SourceFactory func() (Source, error)

// FFmpegAvailable reports whether the ffmpeg binary is on PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// DefaultSourceFactory returns an ffmpeg-backed factory, or nil when the
// platform cannot capture (no ffmpeg, unsupported OS). Callers detect
// absence via Capture.Supported.
func DefaultSourceFactory() SourceFactory {
	if !FFmpegAvailable() {
		return nil
	}
	if _, err := micArgs(runtime.GOOS); err != nil {
		return nil
	}
	return func() (Source, error) { return NewFFmpegSource() }
}

// FFmpegSource captures microphone audio by reading s16le mono PCM from an
// ffmpeg subprocess. Close may race a blocked Read; killing the process
// unblocks it.
type FFmpegSource struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewFFmpegSource creates an unstarted ffmpeg microphone source.
func NewFFmpegSource() (*FFmpegSource, error) {
	if !FFmpegAvailable() {
		return nil, errors.New("ffmpeg is required for voice capture (install ffmpeg and ensure it is in PATH)")
	}
	return &FFmpegSource{}, nil
}

func micArgs(goos string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", fmt.Sprintf("%d", CaptureSampleRate),
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", fmt.Sprintf("%d", CaptureSampleRate),
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("voice capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

// Start launches the ffmpeg capture process.
func (s *FFmpegSource) Start() error {
	args, err := micArgs(runtime.GOOS)
	if err != nil {
		return err
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	s.mu.Lock()
	s.cmd = cmd
	s.stdout = stdout
	s.mu.Unlock()
	return nil
}

// Read returns captured PCM bytes. The blocking pipe read happens outside
// the lock so Close can kill the process and unblock it.
func (s *FFmpegSource) Read(p []byte) (int, error) {
	if s == nil {
		return 0, io.EOF
	}
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()
	if stdout == nil {
		return 0, io.EOF
	}
	return stdout.Read(p)
}

// Close terminates the capture process. Safe to call concurrently and more
// than once.
func (s *FFmpegSource) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdout = nil
	return nil
}
