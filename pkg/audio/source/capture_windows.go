//go:build windows

package source

import "os/exec"

// DirectShow has no safe default input; devices are named like
// "audio=Microphone (Realtek Audio)" or "audio=Stereo Mix (Realtek Audio)".
func platformCapture(kind Kind) platformConfig {
	return platformConfig{
		command:    "ffmpeg",
		usesFFmpeg: true,
		buildArgs: func(device string) []string {
			return ffmpegCaptureArgs("dshow", device)
		},
	}
}

// SIGINT is not deliverable to child processes on Windows.
func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
