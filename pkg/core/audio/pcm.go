// Package audio decodes provider speech payloads (raw signed 16-bit
// little-endian PCM, mono, 24 kHz) and plays them through a single
// preemptible output handle.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"time"
)

// SampleRate is the fixed sample rate of provider speech payloads.
const SampleRate = 24000

const bytesPerSample = 2

// DecodePCM16 reinterprets every 2 bytes as a little-endian signed 16-bit
// integer and normalizes to [-1.0, 1.0] by dividing by 32768. An odd
// trailing byte is ignored.
func DecodePCM16(b []byte) []float32 {
	samples := make([]float32, 0, len(b)/bytesPerSample)
	for i := 0; i+1 < len(b); i += bytesPerSample {
		v := int16(b[i]) | int16(b[i+1])<<8
		samples = append(samples, float32(v)/32768.0)
	}
	return samples
}

// EncodePCM16 converts normalized samples back to signed 16-bit
// little-endian PCM, clamping out-of-range values.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		scaled := s * 32768.0
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		v := int16(scaled)
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}

// DecodeBase64PCM decodes a base64-encoded PCM16LE payload into normalized
// samples.
func DecodeBase64PCM(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return DecodePCM16(raw), nil
}

// Duration returns the playback duration of byteLen bytes of PCM16LE mono
// audio at the given sample rate.
func Duration(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// WAVFromPCM16 wraps raw PCM16LE mono audio in a minimal RIFF/WAVE header so
// it can be handed to services that require a container format.
func WAVFromPCM16(pcm []byte, sampleRate int) []byte {
	const headerLen = 44
	out := make([]byte, headerLen+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*bytesPerSample))
	binary.LittleEndian.PutUint16(out[32:34], bytesPerSample)
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerLen:], pcm)
	return out
}
