package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/murmur/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// floatsToBytes converts float32 samples to little-endian IEEE-754 bytes.
func floatsToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// sine returns n samples of a unit-amplitude sine at freq Hz sampled at rate.
func sine(n int, freq, rate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
	}
	return out
}

func approx(a, b, tol float32) bool {
	return float32(math.Abs(float64(a-b))) <= tol
}

func TestInt16ToFloat32(t *testing.T) {
	got := audio.Int16ToFloat32(samplesToBytes([]int16{0, 16384, -32768, 32767}))
	want := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInt16ToFloat32_OddByteIgnored(t *testing.T) {
	got := audio.Int16ToFloat32([]byte{0x00, 0x40, 0x7f})
	if len(got) != 1 {
		t.Fatalf("length mismatch: got %d, want 1", len(got))
	}
	if got[0] != 0.5 {
		t.Errorf("got %v, want 0.5", got[0])
	}
}

func TestDownmixMono_Stereo(t *testing.T) {
	got := audio.DownmixMono([]float32{0.5, 0.5, -0.5, 0.5, 1, 0}, 2)
	want := []float32{0.5, 0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmixMono_FourChannels(t *testing.T) {
	got := audio.DownmixMono([]float32{1, 0, 0, 1}, 4)
	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("got %v, want [0.5]", got)
	}
}

func TestResampleLinear_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := audio.ResampleLinear(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResampleLinear_Empty(t *testing.T) {
	if out := audio.ResampleLinear(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("expected empty output, got %d samples", len(out))
	}
}

func TestResampleLinear_Length(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		src, dst int
		want     int
	}{
		{"48k to 16k", 4800, 48000, 16000, 1600},
		{"44.1k to 16k", 4410, 44100, 16000, 1600},
		{"16k to 48k", 160, 16000, 48000, 480},
		{"24k to 16k", 10, 24000, 16000, 6},
		{"too short", 2, 48000, 16000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := audio.ResampleLinear(make([]float32, tt.n), tt.src, tt.dst)
			if len(out) != tt.want {
				t.Errorf("got %d samples, want %d", len(out), tt.want)
			}
		})
	}
}

func TestResampleLinear_Interpolation(t *testing.T) {
	// Upsampling 1:2 inserts midpoints; the last output clamps to the last input.
	out := audio.ResampleLinear([]float32{0, 1, 0}, 8000, 16000)
	want := []float32{0, 0.5, 1, 0.5, 0, 0}
	if len(out) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if !approx(out[i], want[i], 1e-6) {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestResampleLinear_PreservesTone(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
	}{
		{"2:1", 32000, 16000},
		{"3:2", 48000, 32000},
		{"1:1", 16000, 16000},
		{"1:3", 16000, 48000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sine(tt.src/10, 440, float64(tt.src))
			out := audio.ResampleLinear(in, tt.src, tt.dst)
			want := sine(len(out), 440, float64(tt.dst))
			// The clamped tail is excluded.
			for i := 0; i < len(out)-2; i++ {
				if !approx(out[i], want[i], 0.01) {
					t.Fatalf("sample %d: got %v, want %v", i, out[i], want[i])
				}
			}
		})
	}
}

func TestResampleLinear_RoundTrip(t *testing.T) {
	in := sine(1600, 440, 16000)
	out := audio.ResampleLinear(audio.ResampleLinear(in, 16000, 32000), 32000, 16000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	// Downsampling 2:1 lands exactly on the original sample positions.
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestConverter_Int16Stereo48k(t *testing.T) {
	c := audio.NewConverter(16000)
	// 6 stereo frames at 48 kHz -> 2 mono samples at 16 kHz.
	raw := samplesToBytes([]int16{
		16384, 16384, 0, 0, 0, 0,
		-16384, -16384, 0, 0, 0, 0,
	})
	got := c.Convert(raw, audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingInt16})
	want := []float32{0.5, -0.5}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !approx(got[i], want[i], 1e-6) {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConverter_Float32Mono16kIsIdentity(t *testing.T) {
	c := audio.NewConverter(16000)
	in := []float32{0.25, -0.75, 1}
	got := c.Convert(floatsToBytes(in), audio.Format{SampleRate: 16000, Channels: 1, Encoding: audio.EncodingFloat32})
	if len(got) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], in[i])
		}
	}
}

func TestConverter_TrailingPartialFrameDropped(t *testing.T) {
	c := audio.NewConverter(16000)
	raw := append(samplesToBytes([]int16{16384, 16384}), 0x01, 0x02, 0x03)
	got := c.Convert(raw, audio.Format{SampleRate: 16000, Channels: 2, Encoding: audio.EncodingInt16})
	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("got %v, want [0.5]", got)
	}
}

func TestConverter_EmptyAndInvalid(t *testing.T) {
	c := &audio.Converter{}
	tests := []struct {
		name   string
		raw    []byte
		format audio.Format
	}{
		{"empty", nil, audio.Format{SampleRate: 16000, Channels: 1}},
		{"zero channels", []byte{1, 2}, audio.Format{SampleRate: 16000}},
		{"zero rate", []byte{1, 2}, audio.Format{Channels: 1}},
		{"shorter than a frame", []byte{1}, audio.Format{SampleRate: 16000, Channels: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Convert(tt.raw, tt.format); len(got) != 0 {
				t.Errorf("expected empty output, got %d samples", len(got))
			}
		})
	}
}

func TestConverter_DefaultTargetRate(t *testing.T) {
	c := &audio.Converter{}
	got := c.Convert(samplesToBytes(make([]int16, 4800)), audio.Format{SampleRate: 48000, Channels: 1, Encoding: audio.EncodingInt16})
	if len(got) != 1600 {
		t.Errorf("got %d samples, want 1600", len(got))
	}
}

func TestFloat32ToInt16_Clamps(t *testing.T) {
	out := audio.Float32ToInt16([]float32{2, -2, 0.5})
	got := []int16{
		int16(binary.LittleEndian.Uint16(out[0:])),
		int16(binary.LittleEndian.Uint16(out[2:])),
		int16(binary.LittleEndian.Uint16(out[4:])),
	}
	want := []int16{32767, -32768, 16384}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    audio.Encoding
		wantErr bool
	}{
		{"", audio.EncodingInt16, false},
		{"s16le", audio.EncodingInt16, false},
		{"f32le", audio.EncodingFloat32, false},
		{"mp3", 0, true},
	}
	for _, tt := range tests {
		got, err := audio.ParseEncoding(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEncoding(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEncoding(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
