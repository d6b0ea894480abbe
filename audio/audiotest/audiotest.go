// Package audiotest builds small MPEG audio streams for tests.
package audiotest

import (
	"bytes"
	"math/rand"
)

// frameHeader is MPEG-1 Layer III, no CRC, 128 kbit/s, 44.1 kHz, no padding, joint stereo.
var frameHeader = []byte{0xFF, 0xFB, 0x90, 0x64}

// FrameSize is the byte length of one frame: 144 * 128000 / 44100.
const FrameSize = 417

// MP3 returns n silent MPEG-1 Layer III frames (about 26ms each).
func MP3(n int) []byte {
	var buf bytes.Buffer
	buf.Grow(n * FrameSize)
	body := make([]byte, FrameSize-len(frameHeader))
	for i := 0; i < n; i++ {
		buf.Write(frameHeader)
		buf.Write(body)
	}
	return buf.Bytes()
}

// MP3WithID3 prefixes MP3(n) with an empty ID3v2.3 tag of tagSize bytes.
func MP3WithID3(n, tagSize int) []byte {
	tag := []byte{'I', 'D', '3', 3, 0, 0,
		byte(tagSize >> 21 & 0x7f), byte(tagSize >> 14 & 0x7f), byte(tagSize >> 7 & 0x7f), byte(tagSize & 0x7f)}
	tag = append(tag, make([]byte, tagSize)...)
	return append(tag, MP3(n)...)
}

// Variant returns a distinct valid stream per seed, so tests can upload different files.
func Variant(n int, seed byte) []byte {
	b := MP3(n)
	// the last byte of the first frame is main data; changing it keeps the stream valid
	b[FrameSize-1] = seed
	return b
}

// Text returns bytes that are clearly not audio.
func Text() []byte {
	return []byte("this is a plain text file pretending to be an mp3\n")
}

// Noise returns size pseudo-random bytes. The same seed gives the same bytes.
func Noise(size int, seed int64) []byte {
	b := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

// TextWithSync returns text carrying one lone frame header followed by filler.
func TextWithSync() []byte {
	b := []byte("hello world, not audio at all ")
	b = append(b, frameHeader...)
	return append(b, bytes.Repeat([]byte{'A'}, 2000)...)
}

// JunkThenMP3 returns MP3(n) preceded by a short run of text.
func JunkThenMP3(n int) []byte {
	return append([]byte("garbage"), MP3(n)...)
}
