package audio

import "encoding/binary"

// EncodeWAV wraps mono float samples in a 16-bit PCM RIFF/WAV container at
// sampleRate. HTTP transcription backends accept the result as an upload.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToInt16(samples)
	const (
		channels = 1
		bits     = 16
	)
	dataSize := len(pcm)
	buf := make([]byte, 44, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM header size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // format tag: PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*bits/8))
	binary.LittleEndian.PutUint16(buf[32:34], channels*bits/8)
	binary.LittleEndian.PutUint16(buf[34:36], bits)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return append(buf, pcm...)
}
