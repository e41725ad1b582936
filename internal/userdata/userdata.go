// Package userdata parses and validates the per-request debrid credentials
// and listing options carried in query parameters (spec §6). Grounded on
// cmd/deflix-stremio/user_data.go's decode/validate shape, replaced here
// with pure query-parameter parsing (no base64 userData path segment, no
// persisted tokens) per the gateway's per-request-credential rule (§7):
// keys are read fresh from each request and never cached or defaulted.
package userdata

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/autostream/gateway/internal/apierr"
	"github.com/autostream/gateway/internal/debrid"
)

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

const maxFreeTextLen = 256
const maxCookieLen = 4096

var controlOrHTMLChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F<>]`)

// Options is everything a listing request may supply, per spec §6's
// "Recognized listing query parameters" table.
type Options struct {
	Keys              map[debrid.ProviderTag]string
	AdditionalStream  bool
	MaxSizeBytes      int64
	LangPriority      []string
	LangStrict        bool
	Blacklist         []string
	IncludeDirectHost bool
	DirectHostCookie  string
	LabelOrigin       bool
	Only              string
	ResolveAll        bool
	Debug             bool
}

// Parse validates and extracts Options from a request's query string. Any
// malformed value is a validation error (spec §4.13's input-validation
// bullet), not a silently-ignored one, so a caller can surface 400.
func Parse(q url.Values) (Options, error) {
	opts := Options{Keys: map[debrid.ProviderTag]string{}}

	keyParams := map[debrid.ProviderTag][]string{
		debrid.TagAllDebrid:  {"ad", "apikey", "alldebrid"},
		debrid.TagRealDebrid: {"rd", "realdebrid"},
		debrid.TagPremiumize: {"pm", "premiumize"},
		debrid.TagTorBox:     {"tb", "torbox"},
		debrid.TagOffcloud:   {"oc", "offcloud"},
	}
	for tag, names := range keyParams {
		for _, name := range names {
			v := q.Get(name)
			if v == "" {
				continue
			}
			if !apiKeyPattern.MatchString(v) {
				return Options{}, apierr.New(apierr.Validation, fmt.Sprintf("%s has an invalid format", name))
			}
			opts.Keys[tag] = v
		}
	}

	opts.AdditionalStream = truthy(q.Get("fallback")) || truthy(q.Get("additionalstream"))

	if raw := q.Get("max_size"); raw != "" {
		bytes, err := parseMaxSize(raw)
		if err != nil {
			return Options{}, apierr.New(apierr.Validation, "max_size must be an integer byte count or a float GB value")
		}
		opts.MaxSizeBytes = bytes
	}

	if raw := q.Get("lang_prio"); raw != "" {
		if len(raw) > maxFreeTextLen || controlOrHTMLChars.MatchString(raw) {
			return Options{}, apierr.New(apierr.Validation, "lang_prio contains disallowed characters")
		}
		for _, code := range strings.Split(raw, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				opts.LangPriority = append(opts.LangPriority, code)
			}
		}
	}
	opts.LangStrict = truthy(q.Get("lang_strict"))

	if raw := q.Get("blacklist"); raw != "" {
		if len(raw) > maxFreeTextLen || controlOrHTMLChars.MatchString(raw) {
			return Options{}, apierr.New(apierr.Validation, "blacklist contains disallowed characters")
		}
		for _, term := range strings.Split(raw, ",") {
			term = strings.TrimSpace(term)
			if term != "" {
				opts.Blacklist = append(opts.Blacklist, term)
			}
		}
	}

	opts.IncludeDirectHost = truthy(q.Get("nuvio")) || truthy(q.Get("include_nuvio")) || truthy(q.Get("dhosts"))

	if cookie := firstNonEmpty(q.Get("nuvio_cookie"), q.Get("dcookie"), q.Get("cookie")); cookie != "" {
		if len(cookie) > maxCookieLen || strings.ContainsAny(cookie, "\r\n") {
			return Options{}, apierr.New(apierr.Validation, "cookie value is too long or contains line breaks")
		}
		opts.DirectHostCookie = cookie
	}

	opts.LabelOrigin = truthy(q.Get("label_origin"))

	if only := q.Get("only"); only != "" {
		switch only {
		case "torrentio", "tpb", "nuvio":
			opts.Only = only
		default:
			return Options{}, apierr.New(apierr.Validation, "only must be one of torrentio|tpb|nuvio")
		}
	}

	opts.ResolveAll = truthy(q.Get("debridAll")) || truthy(q.Get("resolveAll"))
	opts.Debug = truthy(q.Get("debug"))

	return opts, nil
}

// SelectedProvider returns the highest-priority provider tag present in
// Keys, and its key, per spec §8's deterministic priority order.
func (o Options) SelectedProvider() (debrid.ProviderTag, string, bool) {
	for _, tag := range debrid.PriorityOrder {
		if key, ok := o.Keys[tag]; ok {
			return tag, key, true
		}
	}
	return "", "", false
}

func truthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseMaxSize accepts either a plain integer byte count or a float GB
// value (spec §6: "Max bytes (integer) or GB (float); 0 = unlimited").
func parseMaxSize(raw string) (int64, error) {
	if bytes, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return bytes, nil
	}
	gb, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int64(gb * 1024 * 1024 * 1024), nil
}
