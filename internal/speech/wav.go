package speech

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWAV is returned for audio that is not a readable RIFF/WAVE file.
var ErrInvalidWAV = errors.New("invalid wav data")

// WAVDuration reads the play time from the fmt and data chunks of a WAV file.
func WAVDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var byteRate uint32
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return 0, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			// Streaming encoders leave the size unset.
			avail := uint32(len(data) - body)
			if size == 0 || size == 0xFFFFFFFF || size > avail {
				size = avail
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second)), nil
		}

		// Chunks are word aligned.
		pos = body + int(size) + int(size&1)
	}
	return 0, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}
