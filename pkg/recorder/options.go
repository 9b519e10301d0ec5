package recorder

import (
	"math/rand"
	"regexp"
	"strconv"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
)

// Options is the sink's slice of the session config snapshot.
type Options struct {
	W, H    int
	Fps     int
	Encoder string
	Quality config.QualityPreset

	Audio     bool
	Rate      int
	Channels  int
	SaveAudio bool

	// Segmented rotates interim video parts, see Recording.Rotate
	Segmented  bool
	MuxTimeout time.Duration
	// a non-nil preview makes the encoder tee a low-rate stream to
	// its stdout
	Preview *ffmpeg.PreviewOut
}

// naming regexp
var (
	reDate = regexp.MustCompile(`%date:(.*?)%`)
	reUser = regexp.MustCompile(`%user%`)
	reTag  = regexp.MustCompile(`%tag%`)
	reRand = regexp.MustCompile(`%rand:(\d+)%`)
)

// ParseName expands the output name template tokens: %date:<layout>%,
// %user%, %tag%, %rand:n%.
func ParseName(name, tag, user string) (out string) {
	if d := reDate.FindStringSubmatch(name); d != nil {
		out = reDate.ReplaceAllString(name, time.Now().Format(d[1]))
	} else {
		out = name
	}
	if rnd := reRand.FindStringSubmatch(out); rnd != nil {
		out = reRand.ReplaceAllString(out, random(rnd[1]))
	}
	out = reUser.ReplaceAllString(out, user)
	out = reTag.ReplaceAllString(out, tag)
	return
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func random(num string) string {
	n, err := strconv.Atoi(num)
	if err != nil {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
