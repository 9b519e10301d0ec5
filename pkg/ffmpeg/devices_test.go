package ffmpeg

import "testing"

func checkDevices(t *testing.T, got, want []Device) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%d devices, want %d: %+v", len(got), len(want), got)
	}
	for i, d := range want {
		if got[i] != d {
			t.Errorf("device %d: %+v, want %+v", i, got[i], d)
		}
	}
}

func TestParseDevicesDshow(t *testing.T) {
	out := `[dshow @ 000001c623b07680] DirectShow video devices (some may be both video and audio devices)
[dshow @ 000001c623b07680]  "HD WebCam" (video)
[dshow @ 000001c623b07680]     Alternative name "@device_pnp_\\?\usb#vid_04f2&pid_b6dd"
[dshow @ 000001c623b07680] DirectShow audio devices
[dshow @ 000001c623b07680]  "Microphone (Realtek Audio)" (audio)
[dshow @ 000001c623b07680]     Alternative name "@device_cm_{33D9A762-90C8-11D0-BD43-00A0C911CE86}"
dummy: Immediate exit requested`

	checkDevices(t, ParseDevices(out), []Device{
		{ID: "HD WebCam", Name: "HD WebCam", Kind: "video"},
		{ID: "Microphone (Realtek Audio)", Name: "Microphone (Realtek Audio)", Kind: "audio"},
	})
}

func TestParseDevicesAvfoundation(t *testing.T) {
	out := `[AVFoundation indev @ 0x7f8c5b604540] AVFoundation video devices:
[AVFoundation indev @ 0x7f8c5b604540] [0] FaceTime HD Camera
[AVFoundation indev @ 0x7f8c5b604540] [1] Capture screen 0
[AVFoundation indev @ 0x7f8c5b604540] AVFoundation audio devices:
[AVFoundation indev @ 0x7f8c5b604540] [0] MacBook Pro Microphone`

	checkDevices(t, ParseDevices(out), []Device{
		{ID: "0", Name: "FaceTime HD Camera", Kind: "video"},
		{ID: "1", Name: "Capture screen 0", Kind: "video"},
		{ID: "0", Name: "MacBook Pro Microphone", Kind: "audio"},
	})
}

func TestParseDevicesPulse(t *testing.T) {
	out := `Auto-detected sources for pulse:
* alsa_output.pci-0000_00_1f.3.analog-stereo.monitor [Monitor of Built-in Audio Analog Stereo]
  alsa_input.pci-0000_00_1f.3.analog-stereo [Built-in Audio Analog Stereo]`

	// the starred default source has to survive the parse too
	checkDevices(t, ParseDevices(out), []Device{
		{ID: "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", Name: "Monitor of Built-in Audio Analog Stereo", Kind: "audio"},
		{ID: "alsa_input.pci-0000_00_1f.3.analog-stereo", Name: "Built-in Audio Analog Stereo", Kind: "audio"},
	})
}

func TestParseDevicesGarbage(t *testing.T) {
	if got := ParseDevices("ffmpeg version 4.4\nno device sections at all"); len(got) != 0 {
		t.Errorf("devices out of nothing: %+v", got)
	}
}
