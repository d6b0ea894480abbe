// Package audio screens uploads by filename extension and by parsing them as MPEG audio.
package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tcolgate/mp3"
	"go.uber.org/zap"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{"mp3"}

// checkFrames is how many frames CheckContent decodes before accepting a stream.
const checkFrames = 8

// minFrames is how many leading frames must sit back to back before a stream counts as audio.
// A single sync pattern turns up by chance in arbitrary binary data.
const minFrames = 2

var (
	// ErrNoFrames is returned by Probe when the input holds no decodable audio frame.
	ErrNoFrames = errors.New("audio: no mpeg frames found")
	// ErrNotContiguous is returned when the leading frames are not back to back or too few.
	ErrNotContiguous = errors.New("audio: leading mpeg frames are not contiguous")
)

// Validator decides whether an upload is an acceptable audio file.
type Validator struct {
	allowed map[string]struct{}
	log     *zap.Logger
}

// NewValidator creates a Validator accepting the given extensions (without dot, any case).
func NewValidator(extensions []string, log *zap.Logger) *Validator {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{allowed: allowed, log: log}
}

// CheckName reports whether filename has a dot and its last suffix, lowercased, is allowed.
func (v *Validator) CheckName(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	_, ok := v.allowed[strings.ToLower(filename[i+1:])]
	return ok
}

// CheckContent reports whether the file at path parses as audio with a positive duration.
// Parse failures count as invalid and are only logged.
func (v *Validator) CheckContent(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		v.log.Debug("content check: open failed", zap.String("path", path), zap.Error(err))
		return false
	}
	defer f.Close()

	d, err := duration(f, checkFrames)
	if err != nil {
		v.log.Debug("content check: not audio", zap.String("path", path), zap.Error(err))
		return false
	}
	return d > 0
}

// Probe returns the total playing time of the MPEG audio file at path.
func Probe(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return duration(f, 0)
}

// duration sums frame durations, stopping after maxFrames frames when maxFrames > 0.
// The first minFrames frames must start right after the ID3v2 tag and follow each other with no
// bytes in between. Later junk is tolerated. A truncated final frame ends the stream.
func duration(r io.Reader, maxFrames int) (time.Duration, error) {
	br := bufio.NewReader(r)
	if err := skipID3v2(br); err != nil {
		return 0, err
	}

	dec := mp3.NewDecoder(br)
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for maxFrames <= 0 || frames < maxFrames {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, fmt.Errorf("decode frame %d: %w", frames, err)
		}
		if frames < minFrames && skipped != 0 {
			return 0, fmt.Errorf("%w: %d stray bytes before frame %d", ErrNotContiguous, skipped, frames)
		}
		frames++
		total += frame.Duration()
	}
	if frames == 0 {
		return 0, ErrNoFrames
	}
	if frames < minFrames {
		return 0, fmt.Errorf("%w: only %d frame", ErrNotContiguous, frames)
	}
	return total, nil
}

// skipID3v2 discards a leading ID3v2 tag so the decoder starts at the first audio frame.
func skipID3v2(br *bufio.Reader) error {
	hdr, err := br.Peek(10)
	if err != nil || string(hdr[:3]) != "ID3" {
		// too short to hold a tag; the decoder reports the real problem
		return nil
	}
	size := int64(hdr[6]&0x7f)<<21 | int64(hdr[7]&0x7f)<<14 | int64(hdr[8]&0x7f)<<7 | int64(hdr[9]&0x7f)
	if hdr[5]&0x10 != 0 {
		size += 10 // footer present
	}
	if _, err := br.Discard(10); err != nil {
		return err
	}
	if _, err := io.CopyN(io.Discard, br, size); err != nil {
		return fmt.Errorf("id3v2 tag truncated: %w", err)
	}
	return nil
}
