package audio

import (
	"encoding/binary"
	"errors"
)

// WAVInfo is the format metadata extracted from a RIFF/WAVE container.
type WAVInfo struct {
	Format
	// DataOffset is the byte offset of the first PCM sample.
	DataOffset int
	// DataSize is the declared length of the data chunk, clipped to the input.
	DataSize int
	// BitsPerSample from the fmt chunk; 16 for every format this package emits.
	BitsPerSample int
}

// EncodeWAV wraps raw int16 PCM in a 44-byte canonical WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	dataSize := len(pcm)
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*bps/8))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*bps/8))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// ParseWAV walks the RIFF chunks of wav and locates the fmt and data chunks.
// Chunk sizes are honoured, so headers with extension or LIST chunks parse
// correctly.
func ParseWAV(wav []byte) (WAVInfo, error) {
	if len(wav) < 12 {
		return WAVInfo{}, errors.New("audio: WAV too short to be a RIFF file")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("audio: not a RIFF/WAVE container")
	}

	var (
		info     WAVInfo
		foundFmt bool
	)
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch id {
		case "fmt ":
			if size >= 16 && offset+8+16 <= len(wav) {
				f := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
				info.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return WAVInfo{}, errors.New("audio: WAV data chunk precedes fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataSize = min(size, len(wav)-info.DataOffset)
			return info, nil
		}

		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}
	return WAVInfo{}, errors.New("audio: WAV missing data chunk")
}

// WAVPCM returns the int16 PCM payload of wav along with its format.
func WAVPCM(wav []byte) ([]byte, Format, error) {
	info, err := ParseWAV(wav)
	if err != nil {
		return nil, Format{}, err
	}
	if info.BitsPerSample != 0 && info.BitsPerSample != 16 {
		return nil, Format{}, errors.New("audio: only 16-bit PCM WAV is supported")
	}
	return wav[info.DataOffset : info.DataOffset+info.DataSize], info.Format, nil
}
