package capture

import (
	"fmt"
	"image"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/kbinani/screenshot"
)

type displayGrabber struct{}

// NewDisplayGrabber returns the OS screen grab backend.
func NewDisplayGrabber() ScreenGrabber { return displayGrabber{} }

func (displayGrabber) Grab(r Region) (*image.RGBA, error) {
	return screenshot.CaptureRect(r.Bounds())
}

func (displayGrabber) Close() error { return nil }

// Displays lists the bounds of the active displays.
func Displays() []Region {
	n := screenshot.NumActiveDisplays()
	res := make([]Region, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		res = append(res, Region{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()})
	}
	return res
}

// ResolveRegion picks the capture rectangle: an explicit config region
// wins, otherwise the monitor's full bounds. Odd sides are trimmed,
// the encoded output needs even dimensions.
func ResolveRegion(v config.Video) (Region, error) {
	displays := Displays()
	if len(displays) == 0 {
		return Region{}, fmt.Errorf("no active displays")
	}
	if v.Monitor < 0 || v.Monitor >= len(displays) {
		return Region{}, fmt.Errorf("monitor %d not found, %d displays active", v.Monitor, len(displays))
	}
	r := displays[v.Monitor]
	if v.Region.Defined() {
		sub := Region{X: v.Region.X, Y: v.Region.Y, W: v.Region.W, H: v.Region.H}
		if !sub.Bounds().In(r.Bounds()) {
			return Region{}, fmt.Errorf("region %v is outside monitor %d (%v)", sub, v.Monitor, r)
		}
		r = sub
	}
	r.W -= r.W % 2
	r.H -= r.H % 2
	if r.W <= 0 || r.H <= 0 {
		return Region{}, fmt.Errorf("empty capture region %v", r)
	}
	return r, nil
}
