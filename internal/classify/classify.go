// Package classify implements C5: a single pass over a candidate's combined
// free text that extracts resolution, codec, container, HDR flags, size,
// seeders, languages, and release group using case-insensitive token
// matches. Grounded on the inline quality/regex detection spread across the
// teacher's pkg/imdb2torrent/*.go (rarbg.go's magnet2InfoHashRegex idiom,
// tpb.go's strings.Contains quality ladder), consolidated into one
// table-driven pass.
package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Codec is the closed set of codecs recognized.
type Codec string

const (
	H264    Codec = "h264"
	H265    Codec = "h265"
	Unknown Codec = "unknown"
)

// Container is the closed set of containers recognized.
type Container string

const (
	MP4            Container = "mp4"
	MKV            Container = "mkv"
	AVI            Container = "avi"
	UnknownCont    Container = "unknown"
)

// Source is the closed set of release sources the scorer's source-quality
// bucket (spec §4.8) keys off. Not one of §4.6's enumerated bullets, but
// required by the scorer's formula ("BluRay/Remux a modest bonus... WEB-DL
// smaller, HDTV smallest"), so it is detected here alongside the rest of
// the single text pass.
type Source string

const (
	SourceBluRayRemux Source = "bluray_remux"
	SourceWebDL       Source = "webdl"
	SourceHDTV        Source = "hdtv"
	SourceUnknown     Source = "unknown"
)

// HDRFlag is one of the independently-detected HDR-related flags.
type HDRFlag string

const (
	HDR       HDRFlag = "hdr"
	HDR10Plus HDRFlag = "hdr10_plus"
	DV        HDRFlag = "dv"
	TenBit    HDRFlag = "10bit"
)

// Features is the set of derived features C5 attaches to a candidate.
type Features struct {
	Resolution   int // one of 2160, 1440, 1080, 720, 480, 0
	Codec        Codec
	Container    Container
	Bytes        int64
	Languages    []string
	Seeders      int
	ReleaseGroup string
	HDRFlags     []HDRFlag
	Source       Source
}

type tokenMatch struct {
	pattern *regexp.Regexp
	value   int
}

var resolutionTable = []tokenMatch{
	{regexp.MustCompile(`(?i)2160p|4k|uhd`), 2160},
	{regexp.MustCompile(`(?i)1440p|2k|qhd`), 1440},
	{regexp.MustCompile(`(?i)1080p|fhd`), 1080},
	{regexp.MustCompile(`(?i)720p|hd`), 720},
	{regexp.MustCompile(`(?i)480p|sd`), 480},
}

var (
	h265Pattern = regexp.MustCompile(`(?i)x265|hevc|h\.?265`)
	h264Pattern = regexp.MustCompile(`(?i)x264|avc|h\.?264`)

	mp4Pattern = regexp.MustCompile(`(?i)\.mp4`)
	mkvPattern = regexp.MustCompile(`(?i)\.mkv`)
	aviPattern = regexp.MustCompile(`(?i)\.avi`)

	hdr10PlusPattern = regexp.MustCompile(`(?i)hdr10\+`)
	dvPattern        = regexp.MustCompile(`(?i)dolby vision|dv`)
	hdrPattern       = regexp.MustCompile(`(?i)hdr`)
	tenBitPattern    = regexp.MustCompile(`(?i)10.?bit|hi10p`)

	sizePattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(TB|GB|MB|KB|B)\b`)
	trailingLine   = regexp.MustCompile(`(?i)(\d+)\s+(\d+(?:\.\d+)?)\s*(TB|GB|MB|KB|B)\s*$`)

	releaseGroupSuffix = regexp.MustCompile(`-([A-Za-z0-9]+)\s*$`)
	releaseGroupBracket = regexp.MustCompile(`\[([A-Za-z0-9]+)\]\s*$`)

	bluRayRemuxPattern = regexp.MustCompile(`(?i)blu-?ray|bdrip|bd-?remux|remux`)
	webDLPattern       = regexp.MustCompile(`(?i)web-?dl|webrip|web\b`)
	hdtvPattern        = regexp.MustCompile(`(?i)hdtv|pdtv|dsr`)
)

var unitMultiplier = map[string]int64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
	"TB": 1024 * 1024 * 1024 * 1024,
}

// languagePattern is a per-language table of match patterns; matches are
// case-insensitive substring/regex checks against the combined text.
type languagePattern struct {
	code     string
	patterns []*regexp.Regexp
}

var languageTable = []languagePattern{
	{"EN", []*regexp.Regexp{regexp.MustCompile(`(?i)\benglish\b|\[en\]|\.en\.`)}},
	{"ES", []*regexp.Regexp{regexp.MustCompile(`(?i)\bspanish\b|\bespañol\b|\[es\]|\.es\.`)}},
	{"FR", []*regexp.Regexp{regexp.MustCompile(`(?i)\bfrench\b|\bfrançais\b|\[fr\]|\.fr\.`)}},
	{"DE", []*regexp.Regexp{regexp.MustCompile(`(?i)\bgerman\b|\bdeutsch\b|\[de\]|\.de\.`)}},
	{"IT", []*regexp.Regexp{regexp.MustCompile(`(?i)\bitalian\b|\[it\]|\.it\.`)}},
	{"PT-BR", []*regexp.Regexp{regexp.MustCompile(`(?i)\bpt-br\b|\bbrazilian\b|\bdublado\b`)}},
	{"PT-PT", []*regexp.Regexp{regexp.MustCompile(`(?i)\bpt-pt\b|\bportuguese\b|\bportugues\b`)}},
	{"RU", []*regexp.Regexp{regexp.MustCompile(`(?i)\brussian\b|\[ru\]|\.ru\.`)}},
	{"HI", []*regexp.Regexp{regexp.MustCompile(`(?i)\bhindi\b`)}},
}

// emojiFlagLanguage maps a small set of emoji flags to a language code, as
// some indexers annotate entries with a flag instead of (or beside) text.
var emojiFlagLanguage = map[string]string{
	"🇬🇧": "EN",
	"🇺🇸": "EN",
	"🇪🇸": "ES",
	"🇫🇷": "FR",
	"🇩🇪": "DE",
	"🇮🇹": "IT",
	"🇧🇷": "PT-BR",
	"🇵🇹": "PT-PT",
	"🇷🇺": "RU",
}

// Classify runs the single pass described in spec §4.6 over the candidate's
// combined free text. structuredSeeders and structuredBytes let a caller
// pass values the upstream set explicitly in structured fields, which take
// priority over text-derived values (spec: "taken from structured fields
// if the upstream set them, else from a trailing line pattern").
func Classify(name, title, description, filename string, structuredSeeders int, structuredBytes int64) Features {
	text := strings.Join([]string{name, title, description, filename}, " ")

	f := Features{
		Codec:     Unknown,
		Container: UnknownCont,
	}

	f.Resolution = matchResolution(text)
	f.Codec = matchCodec(text)
	f.Container = matchContainer(text)
	f.HDRFlags = matchHDRFlags(text)
	f.Languages = matchLanguages(text)
	f.ReleaseGroup = matchReleaseGroup(text)
	f.Source = matchSource(text)

	if structuredBytes > 0 {
		f.Bytes = structuredBytes
	} else {
		f.Bytes = matchSize(text)
	}

	if structuredSeeders > 0 {
		f.Seeders = structuredSeeders
	} else {
		f.Seeders = matchTrailingSeeders(text)
	}

	return f
}

func matchResolution(text string) int {
	for _, tm := range resolutionTable {
		if tm.pattern.MatchString(text) {
			return tm.value
		}
	}
	return 0
}

func matchCodec(text string) Codec {
	// First-match order: h265 checked before h264, per the ordering implied
	// by the feature table (h265 carries a very different scoring outcome
	// so an unambiguous, deterministic first match matters more than which
	// literally appears first in the string).
	if h265Pattern.MatchString(text) {
		return H265
	}
	if h264Pattern.MatchString(text) {
		return H264
	}
	return Unknown
}

func matchContainer(text string) Container {
	if mp4Pattern.MatchString(text) {
		return MP4
	}
	if mkvPattern.MatchString(text) {
		return MKV
	}
	if aviPattern.MatchString(text) {
		return AVI
	}
	return UnknownCont
}

func matchHDRFlags(text string) []HDRFlag {
	var flags []HDRFlag
	if hdr10PlusPattern.MatchString(text) {
		flags = append(flags, HDR10Plus)
	}
	if dvPattern.MatchString(text) {
		flags = append(flags, DV)
	}
	if hdrPattern.MatchString(text) {
		flags = append(flags, HDR)
	}
	if tenBitPattern.MatchString(text) {
		flags = append(flags, TenBit)
	}
	return flags
}

func matchSize(text string) int64 {
	m := sizePattern.FindStringSubmatch(text)
	if m != nil {
		return toBytes(m[1], m[2])
	}
	m = trailingLine.FindStringSubmatch(text)
	if m != nil {
		return toBytes(m[2], m[3])
	}
	return 0
}

func matchTrailingSeeders(text string) int {
	m := trailingLine.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func toBytes(numStr, unit string) int64 {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0
	}
	mult, ok := unitMultiplier[strings.ToUpper(unit)]
	if !ok {
		return 0
	}
	return int64(f * float64(mult))
}

// matchLanguages returns the union of every language whose pattern matches,
// plus any emoji-flag matches. It does not normalize a bare "PT"; that is
// NormalizePreference's job for caller-supplied preference tokens.
func matchLanguages(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}

	for _, lp := range languageTable {
		for _, p := range lp.patterns {
			if p.MatchString(text) {
				add(lp.code)
				break
			}
		}
	}
	for flag, code := range emojiFlagLanguage {
		if strings.Contains(text, flag) {
			add(code)
		}
	}
	return out
}

// NormalizePreference normalizes a caller-supplied "PT" preference token to
// "PT-PT" unless the candidate's text explicitly matched "PT-BR".
func NormalizePreference(pref string, candidateLanguages []string) string {
	if strings.EqualFold(pref, "PT") {
		for _, l := range candidateLanguages {
			if l == "PT-BR" {
				return "PT-BR"
			}
		}
		return "PT-PT"
	}
	return strings.ToUpper(pref)
}

func matchSource(text string) Source {
	if bluRayRemuxPattern.MatchString(text) {
		return SourceBluRayRemux
	}
	if webDLPattern.MatchString(text) {
		return SourceWebDL
	}
	if hdtvPattern.MatchString(text) {
		return SourceHDTV
	}
	return SourceUnknown
}

func matchReleaseGroup(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if m := releaseGroupBracket.FindStringSubmatch(last); m != nil {
		return m[1]
	}
	if m := releaseGroupSuffix.FindStringSubmatch(last); m != nil {
		return m[1]
	}
	return ""
}
