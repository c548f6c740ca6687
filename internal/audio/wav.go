package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// EncodeWAV wraps little-endian PCM16 audio in a WAV container in memory.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	if err := writeWAV(ws, pcm, sampleRate, channels); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("audio: reading wav into memory: %w", err)
	}
	return data, nil
}

// WriteWAVFile writes little-endian PCM16 audio to path as a WAV file.
func WriteWAVFile(path string, pcm []byte, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: creating wav file: %w", err)
	}

	if err := writeWAV(f, pcm, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: closing wav file: %w", err)
	}
	return nil
}

func writeWAV(w io.WriteSeeker, pcm []byte, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("audio: invalid wav format: %d Hz, %d channels", sampleRate, channels)
	}
	if len(pcm)%(BytesPerSample*channels) != 0 {
		return fmt.Errorf("audio: pcm length %d is not a whole number of frames", len(pcm))
	}

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           pcm16ToInts(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: encoder close: %w", err)
	}
	return nil
}

// pcm16ToInts converts raw bytes (little-endian int16) to the int samples
// go-audio works with.
func pcm16ToInts(pcm []byte) []int {
	samples := make([]int, len(pcm)/BytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples
}
