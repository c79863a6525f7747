package vad

// Energy is a stateless [Classifier] that reports speech when the mean
// squared amplitude of the chunk exceeds Threshold.
type Energy struct {
	// Threshold is the mean energy boundary. Zero selects
	// [DefaultEnergyThreshold].
	Threshold float64
}

// Classify implements [Classifier]. An empty chunk is silence.
func (e Energy) Classify(chunk []float32) Result {
	if len(chunk) == 0 {
		return Result{}
	}
	th := e.Threshold
	if th <= 0 {
		th = DefaultEnergyThreshold
	}
	var sum float64
	for _, s := range chunk {
		sum += float64(s) * float64(s)
	}
	energy := sum / float64(len(chunk))
	return Result{IsSpeech: energy > th, Score: energy}
}

// Reset implements [Classifier]; Energy has no state.
func (Energy) Reset() {}

// Name implements [Classifier].
func (Energy) Name() string { return "energy" }

// Close implements [Classifier].
func (Energy) Close() error { return nil }

var _ Classifier = Energy{}
