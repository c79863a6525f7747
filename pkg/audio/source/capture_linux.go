//go:build linux

package source

import (
	"os"
	"os/exec"
)

func platformCapture(kind Kind) platformConfig {
	if kind == KindLoopback {
		// PulseAudio and PipeWire expose the output mix as a monitor source.
		return platformConfig{
			command:       "ffmpeg",
			defaultDevice: "@DEFAULT_MONITOR@",
			usesFFmpeg:    true,
			buildArgs: func(device string) []string {
				return ffmpegCaptureArgs("pulse", device)
			},
		}
	}
	return platformConfig{
		command:       "arecord",
		defaultDevice: "default",
		buildArgs: func(device string) []string {
			return []string{
				"-D", device,
				"-f", "S16_LE",
				"-r", "48000",
				"-c", "2",
				"-t", "raw",
				"-q",
				"-",
			}
		},
	}
}

func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}
