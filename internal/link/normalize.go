package link

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"social-scraper/pkg/models"
)

// trackingParams are query parameters that never change which page is shown
var trackingParams = map[string]bool{
	"si":             true,
	"feature":        true,
	"pp":             true,
	"ab_channel":     true,
	"igsh":           true,
	"igshid":         true,
	"img_index":      true,
	"fbclid":         true,
	"mibextid":       true,
	"__cft__":        true,
	"__tn__":         true,
	"rdid":           true,
	"share_url":      true,
	"ref":            true,
	"refsrc":         true,
	"is_from_webapp": true,
	"sender_device":  true,
	"web_id":         true,
	"_r":             true,
	"_t":             true,
	"gclid":          true,
	"hl":             true,
}

// hostAliases maps mobile and alternate hosts to the canonical host
var hostAliases = map[string]string{
	"m.youtube.com":        "youtube.com",
	"music.youtube.com":    "youtube.com",
	"youtube-nocookie.com": "youtube.com",
	"m.facebook.com":       "facebook.com",
	"mbasic.facebook.com":  "facebook.com",
	"web.facebook.com":     "facebook.com",
	"touch.facebook.com":   "facebook.com",
	"fb.com":               "facebook.com",
	"m.tiktok.com":         "tiktok.com",
	"instagr.am":           "instagram.com",
	"m.instagram.com":      "instagram.com",
}

// Normalize returns the canonical form of a URL string
func Normalize(raw string) (string, error) {
	u, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// NormalizeURL parses and canonicalizes a URL. Normalizing an already
// normalized URL returns it unchanged.
func NormalizeURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", models.ErrMalformedURL)
	}
	if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", models.ErrMalformedURL, u.Scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || !strings.Contains(host, ".") || strings.ContainsAny(host, " _") {
		return nil, fmt.Errorf("%w: missing or invalid host in %q", models.ErrMalformedURL, raw)
	}
	host = strings.TrimPrefix(host, "www.")

	port := u.Port()
	if port == "80" || port == "443" {
		port = ""
	}

	out := &url.URL{
		Scheme: "https",
		Host:   host,
		Path:   cleanPath(u.Path),
	}
	query := u.Query()

	resolveShorthand(out, query)

	if port != "" {
		out.Host = out.Host + ":" + port
	}
	out.RawQuery = encodeQuery(query)

	return out, nil
}

// resolveShorthand rewrites redirector hosts to the page they point at
func resolveShorthand(u *url.URL, query url.Values) {
	if canonical, ok := hostAliases[u.Host]; ok {
		u.Host = canonical
	}

	segments := splitPath(u.Path)

	switch u.Host {
	case "youtu.be":
		if len(segments) == 1 {
			u.Host = "youtube.com"
			u.Path = "/watch"
			query.Set("v", segments[0])
		}
	case "vm.tiktok.com", "vt.tiktok.com":
		if len(segments) == 1 {
			u.Host = "tiktok.com"
			u.Path = "/t/" + segments[0]
		}
	case "instagram.com":
		// /<user>/p/<id> and /<user>/reel/<id> are the same page as /p/<id>
		if len(segments) == 3 && instagramPost(segments) {
			u.Path = "/" + segments[1] + "/" + segments[2]
		}
	case "youtube.com":
		// /embed/<id> and /v/<id> are player URLs for a watch page
		if len(segments) == 2 && (segments[0] == "embed" || segments[0] == "v") {
			u.Path = "/watch"
			query.Set("v", segments[1])
		}
	}
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return ""
	}
	return strings.TrimSuffix(cleaned, "/")
}

func encodeQuery(query url.Values) string {
	for key := range query {
		lk := strings.ToLower(key)
		if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
			query.Del(key)
			continue
		}
		if len(query[key]) == 1 && query[key][0] == "" {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		return ""
	}
	// Encode sorts keys
	return query.Encode()
}

func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
