// Package score implements C7: the device-aware scoring rubric. Three
// distinct tables (tv, mobile, web) share the same contribution
// categories, as spec §4.8 is explicit that this is not "a shared base
// with small add-ons". The scorer is pure given its inputs and the
// reliability snapshot passed in by the caller.
package score

import (
	"net/url"
	"strings"

	"github.com/autostream/gateway/internal/classify"
	"github.com/autostream/gateway/internal/device"
	"github.com/autostream/gateway/internal/model"
)

const baseScore = 800

// HostReputationConfig is the configuration-not-code home for the
// "authoritative premium direct hosts" Open Question (spec §9, resolved in
// SPEC_FULL.md §13): these lists are supplied by the operator, never
// compiled in as a switch statement.
type HostReputationConfig struct {
	PremiumHosts    map[string]bool
	CDNSuffixes     []string
	SuspiciousTLDs  []string
}

// DefaultHostReputation is a reasonable built-in default; operators are
// expected to override it via configuration.
func DefaultHostReputation() HostReputationConfig {
	return HostReputationConfig{
		PremiumHosts: map[string]bool{
			"real-debrid.com":  true,
			"alldebrid.com":    true,
			"premiumize.me":    true,
			"1fichier.com":     true,
			"rapidgator.net":   true,
		},
		CDNSuffixes: []string{
			".cloudfront.net", ".akamaized.net", ".fastly.net", ".cdn77.org",
		},
		SuspiciousTLDs: []string{".xyz", ".top", ".club", ".click"},
	}
}

// Allow/deny lists for the release-group bucket. Small, intentionally
// coarse; an operator-facing override follows the same config-not-code
// principle as HostReputationConfig but defaults are fine to compile in
// since the spec calls this "a small allow-list"/"a small deny-list"
// rather than flagging it as an Open Question.
var releaseGroupAllow = map[string]bool{
	"SPARKS": true, "FGT": true, "NTG": true, "EVO": true, "ION10": true,
}
var releaseGroupDeny = map[string]bool{
	"YIFY": true, "YTS": true, "RARBG": true,
}

// Input bundles everything the scorer needs beyond the candidate's own
// features: the requesting device class, whether a debrid key is active
// for this request (affects host_bonus), whether the user supplied a
// cookie for cookie-requiring direct hosts, and the current reliability
// penalty for the candidate's host.
type Input struct {
	Device              device.Class
	DebridAvailable     bool
	CookiePresent       bool
	ReliabilityPenalty  int
	HostReputation      HostReputationConfig
}

// Score computes the integer score and an explanatory breakdown for c,
// per the formula in spec §4.8.
func Score(c model.Candidate, in Input) (int, map[string]int) {
	breakdown := map[string]int{}

	breakdown["base"] = baseScore
	breakdown["reliability_penalty"] = -in.ReliabilityPenalty
	breakdown["quality"] = quality(in.Device, c.Features)
	breakdown["source_quality"] = sourceQuality(in.Device, c.Features.Source)
	breakdown["container"] = container(in.Device, c.Features.Container)
	breakdown["release_group"] = releaseGroup(c.Features.ReleaseGroup)
	breakdown["size"] = size(in.Device, c.Features.Resolution, c.Features.Bytes)
	breakdown["seeders"] = seeders(c.Features.Seeders, c.Origin)
	breakdown["host_bonus"] = hostBonus(c, in)
	breakdown["cookie_bonus"], breakdown["no_cookie_penalty"] = cookie(c, in)
	breakdown["type_bonus"] = typeBonus(c.Origin)

	total := 0
	for _, v := range breakdown {
		total += v
	}
	return total, breakdown
}

func quality(d device.Class, f classify.Features) int {
	total := 0
	switch d {
	case device.TV:
		total += resolutionPoints(f.Resolution, map[int]int{2160: 40, 1080: 30, 720: 20, 480: 10})
		total += hdrPoints(f.HDRFlags, 15, 10)
		total += codecPoints(f.Codec, -60, 40)
	case device.Mobile:
		total += resolutionPoints(f.Resolution, map[int]int{2160: 20, 1080: 35, 720: 25, 480: 15})
		total += hdrPoints(f.HDRFlags, 20, 15)
		total += codecPoints(f.Codec, 10, 20)
		total += tenBitPenalty(f.HDRFlags, -10)
	case device.Web:
		total += resolutionPoints(f.Resolution, map[int]int{2160: 40, 1080: 30, 720: 20, 480: 10})
		total += hdrPoints(f.HDRFlags, 25, 20)
		total += codecPoints(f.Codec, 5, 20)
		total += tenBitPenalty(f.HDRFlags, -5)
	}
	// tv's 10bit penalty is distinct (-25) from mobile/web; handled here so
	// the switch above stays readable.
	if d == device.TV {
		total += tenBitPenalty(f.HDRFlags, -25)
	}
	return total
}

func resolutionPoints(resolution int, table map[int]int) int {
	return table[resolution]
}

func hdrPoints(flags []classify.HDRFlag, hdr10PlusOrDV, plainHDR int) int {
	hasHDR10PlusOrDV := hasFlag(flags, classify.HDR10Plus) || hasFlag(flags, classify.DV)
	hasPlainHDR := hasFlag(flags, classify.HDR)
	total := 0
	if hasHDR10PlusOrDV {
		total += hdr10PlusOrDV
	} else if hasPlainHDR {
		total += plainHDR
	}
	return total
}

func tenBitPenalty(flags []classify.HDRFlag, penalty int) int {
	if hasFlag(flags, classify.TenBit) {
		return penalty
	}
	return 0
}

func hasFlag(flags []classify.HDRFlag, target classify.HDRFlag) bool {
	for _, f := range flags {
		if f == target {
			return true
		}
	}
	return false
}

func codecPoints(codec classify.Codec, h265Points, h264Points int) int {
	switch codec {
	case classify.H265:
		return h265Points
	case classify.H264:
		return h264Points
	default:
		return 0
	}
}

func sourceQuality(d device.Class, s classify.Source) int {
	switch d {
	case device.TV:
		switch s {
		case classify.SourceBluRayRemux:
			return 20
		case classify.SourceWebDL:
			return 10
		case classify.SourceHDTV:
			return 5
		}
	case device.Mobile, device.Web:
		switch s {
		case classify.SourceBluRayRemux:
			return 15
		case classify.SourceWebDL:
			return 10
		case classify.SourceHDTV:
			return 5
		}
	}
	return 0
}

func container(d device.Class, c classify.Container) int {
	switch d {
	case device.TV:
		switch c {
		case classify.MP4:
			return 25
		case classify.MKV:
			return -20
		case classify.AVI:
			return 15
		}
	case device.Mobile:
		switch c {
		case classify.MP4:
			return 20
		case classify.MKV:
			return -10
		}
	case device.Web:
		switch c {
		case classify.MP4:
			return 15
		case classify.MKV:
			return -5
		}
	}
	return 0
}

func releaseGroup(group string) int {
	if group == "" {
		return 0
	}
	upper := strings.ToUpper(group)
	if releaseGroupAllow[upper] {
		return 10
	}
	if releaseGroupDeny[upper] {
		return -10
	}
	return 0
}

// size applies the piecewise size function described in spec §4.8: a
// too-small lower bound (penalty), a good middle (small bonus), and on
// mobile an oversize-for-mobile upper bound for 4K >= 20 GiB.
func size(d device.Class, resolution int, bytes int64) int {
	if bytes <= 0 {
		return 0
	}
	const gib = 1024 * 1024 * 1024
	switch resolution {
	case 2160:
		switch {
		case bytes < 4*gib:
			return -30
		case d == device.Mobile && bytes >= 20*gib:
			return -15
		case bytes <= 20*gib:
			return 10
		default:
			return 0
		}
	case 1080:
		switch {
		case bytes < int64(0.7*gib):
			return -20
		case bytes <= 8*gib:
			return 10
		default:
			return 0
		}
	case 720:
		switch {
		case bytes < int64(0.4*gib):
			return -15
		case bytes <= 4*gib:
			return 5
		default:
			return 0
		}
	case 480:
		switch {
		case bytes < int64(0.2*gib):
			return -10
		default:
			return 0
		}
	default:
		return 0
	}
}

func seeders(n int, origin model.Origin) int {
	if origin == model.OriginDirectHost {
		// Seeders is a torrent-only concept; direct hosts never carry it.
		return 0
	}
	switch {
	case n <= 0:
		return -1000
	case n < 3:
		return -300
	case n < 5:
		return -100
	case n < 10:
		return -20
	default:
		return 0
	}
}

func hostBonus(c model.Candidate, in Input) int {
	host := hostOf(c)
	if host == "" {
		return 0
	}
	rep := in.HostReputation
	if c.InfoHash != "" && in.DebridAvailable {
		return 30
	}
	if rep.PremiumHosts[host] {
		return 25
	}
	for _, suffix := range rep.CDNSuffixes {
		if strings.HasSuffix(host, suffix) {
			return 15
		}
	}
	if looksLikeIP(host) {
		return -10
	}
	for _, tld := range rep.SuspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return -10
		}
	}
	return 0
}

func cookie(c model.Candidate, in Input) (bonus int, penalty int) {
	if c.Origin != model.OriginDirectHost || !c.RequiresCookie {
		return 0, 0
	}
	if in.CookiePresent {
		return 3, 0
	}
	return 0, -400
}

// typeBonus gives torrent-origin candidates a small edge over direct-host
// candidates that carry no debrid resolution path, since a torrent
// candidate can still be picked up by an external torrent client when no
// debrid key is supplied (an interpretive decision recorded in DESIGN.md).
func typeBonus(origin model.Origin) int {
	switch origin {
	case model.OriginTorrentIndexA, model.OriginTorrentIndexB:
		return 5
	default:
		return 0
	}
}

func hostOf(c model.Candidate) string {
	if c.HTTPURL != "" {
		u, err := url.Parse(c.HTTPURL)
		if err == nil {
			return u.Hostname()
		}
	}
	return ""
}

func looksLikeIP(host string) bool {
	return strings.Count(host, ".") == 3 && !strings.ContainsAny(host, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
}
