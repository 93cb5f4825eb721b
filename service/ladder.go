package service

import "vodforge/constant"

// The fixed reference ladder, highest first. A label is offered only when the
// source height reaches its threshold; "original" always leads and carries
// the unmodified source.
var qualityLadder = []struct {
	Label  string
	Height int
}{
	{"2160p", 2160},
	{"1440p", 1440},
	{"1080p", 1080},
	{"720p", 720},
	{"480p", 480},
	{"360p", 360},
	{"240p", 240},
	{"144p", 144},
}

var bandwidthByLabel = map[string]int{
	constant.QualityOriginal: 8000000,
	"2160p":                  16000000,
	"1440p":                  8000000,
	"1080p":                  5000000,
	"720p":                   2800000,
	"480p":                   1400000,
	"360p":                   800000,
	"240p":                   400000,
	"144p":                   200000,
}

var resolutionByLabel = map[string]string{
	constant.QualityOriginal: "1920x1080",
	"2160p":                  "3840x2160",
	"1440p":                  "2560x1440",
	"1080p":                  "1920x1080",
	"720p":                   "1280x720",
	"480p":                   "842x480",
	"360p":                   "640x360",
	"240p":                   "426x240",
	"144p":                   "256x144",
}

const (
	defaultBandwidth  = 5000000
	defaultResolution = "1920x1080"
)

// ResolveLadder returns the rendition labels for a source of the given
// height, highest quality first, always starting with "original".
func ResolveLadder(sourceHeight int) []string {
	labels := []string{constant.QualityOriginal}
	for _, q := range qualityLadder {
		if sourceHeight >= q.Height {
			labels = append(labels, q.Label)
		}
	}
	return labels
}

// VariantInfo returns the manifest bandwidth hint and resolution string for a
// rendition label. Unknown labels fall back to conservative defaults.
func VariantInfo(label string) (bandwidth int, resolution string) {
	bandwidth, ok := bandwidthByLabel[label]
	if !ok {
		bandwidth = defaultBandwidth
	}
	resolution, ok = resolutionByLabel[label]
	if !ok {
		resolution = defaultResolution
	}
	return bandwidth, resolution
}

// LadderHeight reports the pixel height a label targets.
func LadderHeight(label string) (int, bool) {
	for _, q := range qualityLadder {
		if q.Label == label {
			return q.Height, true
		}
	}
	return 0, false
}
