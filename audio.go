package patchgrid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type (
	// AudioBuffer is a buffer of stereo frames, the form in which rendered
	// audio leaves the engine and reaches an output device or a file.
	AudioBuffer [][2]float32

	// BlockRenderFunc renders one block of stereo audio. It is the audio
	// callback: implementations must be bounded-time, allocation-free and
	// lock-free.
	BlockRenderFunc func(buf AudioBuffer)

	// AudioContext is an audio playback device. Play keeps calling the
	// render callback at the device's pace until the returned closer is
	// closed.
	AudioContext interface {
		Play(render BlockRenderFunc) AudioCloser
		Close() error
	}

	// AudioCloser stops an ongoing playback.
	AudioCloser interface {
		Close() error
	}
)

// Float32LE appends the buffer as interleaved little-endian float32 bytes to
// dst and returns the result. dst is reused to avoid allocating on every
// block.
func (buf AudioBuffer) Float32LE(dst []byte) []byte {
	for _, frame := range buf {
		l := math.Float32bits(frame[0])
		r := math.Float32bits(frame[1])
		dst = append(dst,
			byte(l), byte(l>>8), byte(l>>16), byte(l>>24),
			byte(r), byte(r>>8), byte(r>>16), byte(r>>24))
	}
	return dst
}

// Int16LE appends the buffer as interleaved, clipped 16-bit little-endian PCM
// bytes to dst and returns the result.
func (buf AudioBuffer) Int16LE(dst []byte) []byte {
	for _, frame := range buf {
		for ch := 0; ch < 2; ch++ {
			v := frame[ch]
			var uv int16
			if v < -1.0 {
				uv = -math.MaxInt16
			} else if v > 1.0 {
				uv = math.MaxInt16
			} else {
				uv = int16(v * math.MaxInt16)
			}
			dst = append(dst, byte(uint16(uv)), byte(uint16(uv)>>8))
		}
	}
	return dst
}

// Wav returns the buffer as a stereo .wav file, either IEEE float32 or 16-bit
// PCM.
func Wav(buffer AudioBuffer, pcm16 bool, sampleRate int) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(buffer)*2, pcm16, sampleRate, buf)
	var raw []byte
	if pcm16 {
		raw = buffer.Int16LE(nil)
	} else {
		raw = buffer.Float32LE(nil)
	}
	if _, err := buf.Write(raw); err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

// wavHeader writes a wave header for either float32 or int16 .wav data.
// bufferLength is the length in individual samples (L + R count separately).
// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
func wavHeader(bufferLength int, pcm16 bool, sampleRate int, buf *bytes.Buffer) {
	numChannels := 2
	var bytesPerSample, chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if pcm16 {
		bytesPerSample = 2
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = 1 // PCM
		factChunk = false
	} else {
		bytesPerSample = 4
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
		factChunk = true
	}
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	if fmtChunkSize > 16 {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // size of extension
	}
	if factChunk {
		buf.Write([]byte("fact"))
		binary.Write(buf, binary.LittleEndian, uint32(4))              // fact chunk size
		binary.Write(buf, binary.LittleEndian, uint32(bufferLength/2)) // sample length in frames
	}
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}
