//go:build !linux && !darwin && !windows

package source

import (
	"os"
	"os/exec"
)

func platformCapture(kind Kind) platformConfig {
	return platformConfig{
		command:    "ffmpeg",
		usesFFmpeg: true,
		buildArgs: func(device string) []string {
			return ffmpegCaptureArgs("oss", device)
		},
	}
}

func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}
