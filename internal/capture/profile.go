package capture

import (
	"errors"
	"strings"
	"unicode"
)

var ErrUnsupportedProfile = errors.New("no supported container/codec profile")

// Profile is one container/codec combination ffmpeg can produce.
type Profile struct {
	Container string // mp4, webm, mkv
	Codec     string // ffmpeg encoder name
	Muxer     string // ffmpeg -f value
	MimeType  string
	Extension string
	// encoder options dropped on the reduced retry
	Args []string
	// container options, always passed
	MuxArgs []string
}

// fragmented mp4 can be written to a pipe
var fragmentedMP4 = []string{"-movflags", "frag_keyframe+empty_moov+default_base_moof"}

// DefaultProfiles lists candidates in preference order within each container.
// Hardware encoders come first, as in the old GetBestH264Encoder.
func DefaultProfiles() []Profile {
	return []Profile{
		{Container: "mp4", Codec: "h264_videotoolbox", Muxer: "mp4", MimeType: "video/mp4", Extension: "mp4", MuxArgs: fragmentedMP4},
		{Container: "mp4", Codec: "h264_nvenc", Muxer: "mp4", MimeType: "video/mp4", Extension: "mp4", Args: []string{"-preset", "p4"}, MuxArgs: fragmentedMP4},
		{Container: "mp4", Codec: "libx264", Muxer: "mp4", MimeType: "video/mp4", Extension: "mp4", Args: []string{"-preset", "medium"}, MuxArgs: fragmentedMP4},
		{Container: "webm", Codec: "libvpx-vp9", Muxer: "webm", MimeType: "video/webm", Extension: "webm", Args: []string{"-deadline", "realtime", "-row-mt", "1"}},
		{Container: "webm", Codec: "libvpx", Muxer: "webm", MimeType: "video/webm", Extension: "webm", Args: []string{"-deadline", "realtime"}},
		{Container: "mkv", Codec: "libx264", Muxer: "matroska", MimeType: "video/x-matroska", Extension: "mkv", Args: []string{"-preset", "medium"}},
	}
}

var containerOrder = []string{"mp4", "webm", "mkv"}

// Capabilities reports what the local encoder supports.
type Capabilities interface {
	HasEncoder(name string) bool
	HasMuxer(name string) bool
}

// Negotiation is the outcome of profile selection.
type Negotiation struct {
	Requested string
	Profile   Profile
	// Fallback is set when the chosen container differs from the requested one.
	Fallback bool
}

// Negotiate tries the requested container first, then mp4, webm and mkv.
func Negotiate(requested string, caps Capabilities, profiles []Profile) (Negotiation, error) {
	all := Candidates(requested, caps, profiles)
	if len(all) == 0 {
		return Negotiation{Requested: normalizeContainer(requested)}, ErrUnsupportedProfile
	}
	return all[0], nil
}

// Candidates lists every supported profile in negotiation order. The first
// entry is what Negotiate picks; the rest are used when an encoder rejects it.
func Candidates(requested string, caps Capabilities, profiles []Profile) []Negotiation {
	requested = normalizeContainer(requested)
	order := []string{requested}
	for _, c := range containerOrder {
		if c != requested {
			order = append(order, c)
		}
	}

	var out []Negotiation
	for _, container := range order {
		for _, p := range profiles {
			if p.Container != container {
				continue
			}
			if caps.HasMuxer(p.Muxer) && caps.HasEncoder(p.Codec) {
				out = append(out, Negotiation{Requested: requested, Profile: p, Fallback: container != requested})
			}
		}
	}
	return out
}

func normalizeContainer(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		return containerOrder[0]
	}
	return requested
}

// Filename builds "<display name>.<actual extension>" for an artifact.
func Filename(display string, a *Artifact) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, strings.TrimSpace(display))
	name = strings.Trim(name, "._")
	if name == "" {
		name = "capture"
	}
	ext := "mp4"
	if a != nil && a.Profile.Extension != "" {
		ext = a.Profile.Extension
	}
	return name + "." + ext
}
