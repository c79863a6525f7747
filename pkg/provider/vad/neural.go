package vad

import "log/slog"

// Neural is a [Classifier] backed by a [Model]. The chunk is split into whole
// model windows; the chunk is speech when the highest window probability
// exceeds the threshold. Samples past the last whole window are ignored.
type Neural struct {
	model     Model
	threshold float64
}

// NewNeural wraps m. A non-positive threshold selects
// [DefaultSpeechThreshold].
func NewNeural(m Model, threshold float64) *Neural {
	if threshold <= 0 {
		threshold = DefaultSpeechThreshold
	}
	return &Neural{model: m, threshold: threshold}
}

// Classify implements [Classifier]. A window the model fails on scores 0.
func (n *Neural) Classify(chunk []float32) Result {
	size := n.model.WindowSize()
	if size <= 0 {
		return Result{}
	}
	var best float32
	for off := 0; off+size <= len(chunk); off += size {
		p, err := n.model.Score(chunk[off : off+size])
		if err != nil {
			slog.Debug("vad: model inference failed", "err", err)
			continue
		}
		if p > best {
			best = p
		}
	}
	return Result{IsSpeech: float64(best) > n.threshold, Score: float64(best)}
}

// Reset implements [Classifier].
func (n *Neural) Reset() { n.model.Reset() }

// Name implements [Classifier].
func (n *Neural) Name() string { return "neural" }

// Close implements [Classifier].
func (n *Neural) Close() error { return n.model.Close() }

var _ Classifier = (*Neural)(nil)
