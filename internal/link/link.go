package link

import (
	"fmt"

	"social-scraper/pkg/models"
)

// Parse normalizes, classifies and detects a raw URL. A non-Unknown hint
// must agree with the platform the URL belongs to.
func Parse(raw string, hint models.Platform) (*models.Link, error) {
	u, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}

	platform := Classify(u)
	if platform == models.PlatformUnknown {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedPlatform, u.Hostname())
	}
	if hint != "" && hint != models.PlatformUnknown && hint != platform {
		return nil, fmt.Errorf("%w: %s link does not belong to %s", models.ErrUnsupportedPlatform, platform, hint)
	}

	kind := Detect(platform, u)
	if kind == models.KindInvalid {
		return nil, fmt.Errorf("%w: %s is not a %s profile or post", models.ErrUnsupportedLinkShape, u.String(), platform)
	}

	return models.NewLink(raw, u, platform, kind), nil
}

// Example is a sample URL accepted by a platform grammar
type Example struct {
	Platform models.Platform
	Kind     models.Kind
	URL      string
}

// Examples returns one or more accepted URLs for every platform and kind
func Examples() []Example {
	return []Example{
		{models.PlatformYouTube, models.KindProfile, "https://youtube.com/@MrBeast"},
		{models.PlatformYouTube, models.KindProfile, "https://youtube.com/channel/UCX6OQ3DkcsbYNE6H8uQQuVA/videos"},
		{models.PlatformYouTube, models.KindPost, "https://youtube.com/watch?v=dQw4w9WgXcQ"},
		{models.PlatformYouTube, models.KindPost, "https://youtube.com/shorts/abc123XYZ"},
		{models.PlatformInstagram, models.KindProfile, "https://instagram.com/natgeo"},
		{models.PlatformInstagram, models.KindPost, "https://instagram.com/p/C1a2B3c4D5e"},
		{models.PlatformInstagram, models.KindPost, "https://instagram.com/reel/C9x8Y7z6W5v"},
		{models.PlatformTikTok, models.KindProfile, "https://tiktok.com/@khaby.lame"},
		{models.PlatformTikTok, models.KindPost, "https://tiktok.com/@khaby.lame/video/7234567890123456789"},
		{models.PlatformFacebook, models.KindProfile, "https://facebook.com/nasa"},
		{models.PlatformFacebook, models.KindProfile, "https://facebook.com/profile.php?id=100064866484146"},
		{models.PlatformFacebook, models.KindPost, "https://facebook.com/nasa/posts/pfbid02abc"},
		{models.PlatformFacebook, models.KindPost, "https://facebook.com/watch?v=123456789"},
	}
}
