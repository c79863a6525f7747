package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
)

// Converter normalises raw capture blocks to mono float32 samples at
// TargetRate. It logs once on the first format mismatch and warns once on the
// first misaligned block. Create one per source; not designed for shared use across
// goroutines.
type Converter struct {
	// TargetRate is the output sample rate in Hz. Zero means DefaultSampleRate.
	TargetRate int

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// NewConverter returns a Converter producing samples at targetRate.
func NewConverter(targetRate int) *Converter {
	return &Converter{TargetRate: targetRate}
}

// Convert decodes raw, downmixes it to mono and resamples it to the target
// rate. Conversion order: decode, downmix, then resample (resampling one
// channel is cheaper than resampling all of them).
//
// Empty or invalid input yields an empty result. Trailing bytes that do not
// form a whole interleaved frame are discarded.
func (c *Converter) Convert(raw []byte, f Format) []float32 {
	frameBytes := f.FrameBytes()
	if len(raw) == 0 || frameBytes == 0 || f.SampleRate <= 0 {
		return nil
	}

	data := raw
	if rem := len(data) % frameBytes; rem != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: block is not frame aligned, dropping trailing bytes",
				"bytes", len(data),
				"trailing", rem,
				"format", f.String(),
			)
		})
		data = data[:len(data)-rem]
	}
	if len(data) == 0 {
		return nil
	}

	var interleaved []float32
	switch f.Encoding {
	case EncodingFloat32:
		interleaved = Float32LEToFloat32(data)
	default:
		interleaved = Int16ToFloat32(data)
	}
	mono := DownmixMono(interleaved, f.Channels)

	target := c.TargetRate
	if target <= 0 {
		target = DefaultSampleRate
	}
	if f.SampleRate == target {
		return mono
	}

	c.warnedMismatch.Do(func() {
		slog.Info("audio converter: resampling source",
			"from", formatString(f.SampleRate, f.Channels),
			"to", formatString(target, 1),
		)
	})
	return ResampleLinear(mono, f.SampleRate, target)
}

// Int16ToFloat32 converts signed 16-bit little-endian PCM to float32 samples
// scaled by 1/32768 into [-1.0, 1.0). A trailing odd byte is ignored.
func Int16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32LEToFloat32 reinterprets little-endian IEEE-754 float PCM. Trailing
// bytes that do not form a whole sample are ignored.
func Float32LEToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 4
	out := make([]float32, n)
	for i := range n {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[i*4:]))
	}
	return out
}

// DownmixMono averages interleaved multi-channel samples into one channel with
// equal weights. Mono input is returned unchanged.
func DownmixMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	inv := 1 / float32(channels)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum * inv
	}
	return out
}

// ResampleLinear resamples mono samples from srcRate to dstRate using linear
// interpolation. For output index i the source position is i*(srcRate/dstRate);
// the two bracketing samples are blended, with the upper index clamped to the
// last sample. The output holds floor(len(in)/ratio) samples. If the rates are
// equal (or invalid) the input is returned unchanged.
func ResampleLinear(in []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return in
	}
	if len(in) == 0 {
		return nil
	}

	ratio := float64(srcRate) / float64(dstRate)
	// floor(len/ratio), computed in integers so exact ratios do not round down.
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	last := len(in) - 1
	for i := range n {
		pos := float64(i) * ratio
		i0 := int(pos)
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		frac := float32(pos - float64(i0))
		out[i] = in[i0]*(1-frac) + in[i1]*frac
	}
	return out
}

// Float32ToInt16 converts float samples to signed 16-bit little-endian PCM,
// clamping to the int16 range.
func Float32ToInt16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
