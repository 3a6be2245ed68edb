package link

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"social-scraper/pkg/models"
)

type platformDomains struct {
	Platform models.Platform
	Domains  []string
}

// knownDomains lists the registrable domains of every platform
var knownDomains = []platformDomains{
	{models.PlatformYouTube, []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}},
	{models.PlatformInstagram, []string{"instagram.com", "instagr.am"}},
	{models.PlatformTikTok, []string{"tiktok.com"}},
	{models.PlatformFacebook, []string{"facebook.com", "fb.com", "fb.watch"}},
}

var domainIndex = mustBuildDomainIndex(knownDomains)

func buildDomainIndex(table []platformDomains) (map[string]models.Platform, error) {
	index := make(map[string]models.Platform)
	for _, entry := range table {
		for _, domain := range entry.Domains {
			if owner, exists := index[domain]; exists {
				return nil, fmt.Errorf("domain %s claimed by both %s and %s", domain, owner, entry.Platform)
			}
			index[domain] = entry.Platform
		}
	}
	return index, nil
}

func mustBuildDomainIndex(table []platformDomains) map[string]models.Platform {
	index, err := buildDomainIndex(table)
	if err != nil {
		panic(err)
	}
	return index
}

// Classify maps a normalized URL to its platform by host
func Classify(u *url.URL) models.Platform {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return models.PlatformUnknown
	}
	if p, ok := domainIndex[host]; ok {
		return p
	}

	// Subdomains such as business.facebook.com resolve through the
	// registrable domain
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return models.PlatformUnknown
	}
	if p, ok := domainIndex[domain]; ok {
		return p
	}
	return models.PlatformUnknown
}

// ClassifyString normalizes and classifies a raw URL
func ClassifyString(raw string) (models.Platform, error) {
	u, err := NormalizeURL(raw)
	if err != nil {
		return models.PlatformUnknown, err
	}
	return Classify(u), nil
}

// Domains returns the domain table as a map copy
func Domains() map[string]models.Platform {
	out := make(map[string]models.Platform, len(domainIndex))
	for k, v := range domainIndex {
		out[k] = v
	}
	return out
}
