// Package wav frames LINEAR16 PCM as RIFF/WAVE. It has no cgo dependencies so
// servers can encode recordings without linking the capture stack.
package wav

import (
	"bytes"
	"encoding/binary"
)

// HeaderSize is the size of a canonical PCM RIFF/WAVE header.
const HeaderSize = 44

// Header returns the 44-byte RIFF/WAVE header for dataSize bytes of PCM audio.
func Header(dataSize, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	b := make([]byte, HeaderSize)
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], uint32(36+dataSize))
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(b[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(b[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(b[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(b[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(b[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(b[34:36], uint16(bitsPerSample))
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], uint32(dataSize))
	return b
}

// Encode concatenates LINEAR16 chunks and prefixes the WAV header.
func Encode(chunks [][]byte, sampleRate, channels int) []byte {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	var buf bytes.Buffer
	buf.Grow(HeaderSize + size)
	buf.Write(Header(size, sampleRate, channels, 16))
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes()
}

// Float32ToPCM16 converts normalized float samples to little-endian LINEAR16,
// clipping values outside [-1, 1].
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
