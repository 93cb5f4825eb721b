package service

import (
	"fmt"
	"strings"
)

// TrackRef points the master manifest at an audio or subtitle playlist.
type TrackRef struct {
	Language string
	URI      string
}

// VariantRef is one completed rendition's entry in the master manifest.
type VariantRef struct {
	Label      string
	Bandwidth  int
	Resolution string
	URI        string
}

// ComposeMaster renders the master manifest: audio tracks in probe order,
// then subtitle tracks, then one variant entry per completed rendition in
// completion order (original first). It is called again after every rendition
// completes and the whole manifest is rewritten, so mid-processing readers
// always see a valid playlist for whatever exists so far.
func ComposeMaster(audio, subtitles []TrackRef, variants []VariantRef) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")

	for _, track := range audio {
		fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"audio\",NAME=%q,LANGUAGE=%q,URI=%q\n",
			track.Language, track.Language, track.URI)
	}
	for _, track := range subtitles {
		fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID=\"subs\",NAME=%q,LANGUAGE=%q,URI=%q\n",
			track.Language, track.Language, track.URI)
	}

	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s", v.Bandwidth, v.Resolution)
		if len(audio) > 0 {
			b.WriteString(`,AUDIO="audio"`)
		}
		if len(subtitles) > 0 {
			b.WriteString(`,SUBTITLES="subs"`)
		}
		fmt.Fprintf(&b, ",NAME=%q\n%s\n", v.Label, v.URI)
	}

	return b.String()
}
