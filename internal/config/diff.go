package config

import "reflect"

// ConfigDiff describes what changed between two configs. Only the log level
// is applied at runtime; every other changed section is listed in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the top-level sections that changed and only take
	// effect after a restart (e.g., "audio", "transcriber").
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Audio, new.Audio) {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Segmenter != new.Segmenter {
		d.RestartRequired = append(d.RestartRequired, "segmenter")
	}
	if !reflect.DeepEqual(old.VAD, new.VAD) {
		d.RestartRequired = append(d.RestartRequired, "vad")
	}
	if !reflect.DeepEqual(old.Transcriber, new.Transcriber) {
		d.RestartRequired = append(d.RestartRequired, "transcriber")
	}
	return d
}
