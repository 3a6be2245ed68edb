package link

import (
	"net/url"
	"regexp"

	"social-scraper/pkg/models"
)

var (
	idPattern          = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	digitsPattern      = regexp.MustCompile(`^\d+$`)
	igUsernamePattern  = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
	ttUsernamePattern  = regexp.MustCompile(`^@[A-Za-z0-9._]{1,32}$`)
	ytHandlePattern    = regexp.MustCompile(`^@[A-Za-z0-9._-]{1,100}$`)
	fbUsernamePattern  = regexp.MustCompile(`^[A-Za-z0-9.-]{1,80}$`)
	fbNumericIDPattern = regexp.MustCompile(`^\d{5,}$`)
)

// youtubeChannelTabs are channel sub-pages that still show the channel header
var youtubeChannelTabs = map[string]bool{
	"videos":    true,
	"shorts":    true,
	"streams":   true,
	"featured":  true,
	"about":     true,
	"playlists": true,
}

var instagramReserved = map[string]bool{
	"p":         true,
	"reel":      true,
	"reels":     true,
	"tv":        true,
	"explore":   true,
	"accounts":  true,
	"stories":   true,
	"direct":    true,
	"about":     true,
	"developer": true,
	"legal":     true,
	"web":       true,
	"challenge": true,
	"emails":    true,
	"session":   true,
	"graphql":   true,
	"api":       true,
	"static":    true,
	"privacy":   true,
}

var facebookReserved = map[string]bool{
	"watch":         true,
	"groups":        true,
	"events":        true,
	"marketplace":   true,
	"gaming":        true,
	"login":         true,
	"login.php":     true,
	"help":          true,
	"settings":      true,
	"photo.php":     true,
	"photo":         true,
	"permalink.php": true,
	"story.php":     true,
	"share":         true,
	"sharer":        true,
	"sharer.php":    true,
	"reel":          true,
	"hashtag":       true,
	"search":        true,
	"home.php":      true,
	"profile.php":   true,
	"pages":         true,
	"people":        true,
	"notifications": true,
	"messages":      true,
	"friends":       true,
	"bookmarks":     true,
	"policies":      true,
	"privacy":       true,
}

// Detect decides whether a URL of a classified platform points at a
// profile or a single post. Post grammars are checked first and profile
// grammars never accept a path a post grammar accepts.
func Detect(platform models.Platform, u *url.URL) models.Kind {
	segments := splitPath(u.Path)
	query := u.Query()

	var isPost, isProfile bool
	switch platform {
	case models.PlatformYouTube:
		isPost = youtubePost(segments, query)
		isProfile = youtubeProfile(segments)
	case models.PlatformInstagram:
		isPost = instagramPost(segments)
		isProfile = instagramProfile(segments)
	case models.PlatformTikTok:
		isPost = tiktokPost(segments)
		isProfile = tiktokProfile(segments)
	case models.PlatformFacebook:
		if u.Hostname() == "fb.watch" {
			isPost = len(segments) == 1 && idPattern.MatchString(segments[0])
			break
		}
		isPost = facebookPost(segments, query)
		isProfile = facebookProfile(segments, query)
	default:
		return models.KindInvalid
	}

	switch {
	case isPost && isProfile:
		// Grammar overlap is a bug in the rules above
		return models.KindInvalid
	case isPost:
		return models.KindPost
	case isProfile:
		return models.KindProfile
	default:
		return models.KindInvalid
	}
}

func youtubePost(segments []string, query url.Values) bool {
	switch {
	case len(segments) == 1 && segments[0] == "watch":
		return idPattern.MatchString(query.Get("v"))
	case len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "live"):
		return idPattern.MatchString(segments[1])
	}
	return false
}

func youtubeProfile(segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	if ytHandlePattern.MatchString(segments[0]) {
		return len(segments) == 1 || (len(segments) == 2 && youtubeChannelTabs[segments[1]])
	}
	switch segments[0] {
	case "channel", "c", "user":
		if len(segments) < 2 || !idPattern.MatchString(segments[1]) {
			return false
		}
		return len(segments) == 2 || (len(segments) == 3 && youtubeChannelTabs[segments[2]])
	}
	return false
}

func instagramPost(segments []string) bool {
	switch len(segments) {
	case 2:
		switch segments[0] {
		case "p", "reel", "reels", "tv":
			return idPattern.MatchString(segments[1])
		}
	case 3:
		if instagramReserved[segments[0]] || !igUsernamePattern.MatchString(segments[0]) {
			return false
		}
		if segments[1] == "p" || segments[1] == "reel" {
			return idPattern.MatchString(segments[2])
		}
	}
	return false
}

func instagramProfile(segments []string) bool {
	return len(segments) == 1 &&
		!instagramReserved[segments[0]] &&
		igUsernamePattern.MatchString(segments[0])
}

func tiktokPost(segments []string) bool {
	switch len(segments) {
	case 2:
		return segments[0] == "t" && idPattern.MatchString(segments[1])
	case 3:
		return ttUsernamePattern.MatchString(segments[0]) &&
			(segments[1] == "video" || segments[1] == "photo") &&
			digitsPattern.MatchString(segments[2])
	}
	return false
}

func tiktokProfile(segments []string) bool {
	return len(segments) == 1 && ttUsernamePattern.MatchString(segments[0])
}

func facebookPost(segments []string, query url.Values) bool {
	if len(segments) == 0 {
		return false
	}
	switch segments[0] {
	case "watch":
		return len(segments) == 1 && idPattern.MatchString(query.Get("v"))
	case "permalink.php", "story.php":
		return len(segments) == 1 && query.Get("story_fbid") != ""
	case "photo.php", "photo":
		return len(segments) == 1 && query.Get("fbid") != ""
	case "reel":
		return len(segments) == 2 && digitsPattern.MatchString(segments[1])
	}
	if len(segments) == 3 && !facebookReserved[segments[0]] && fbUsernamePattern.MatchString(segments[0]) {
		switch segments[1] {
		case "posts", "videos", "photos":
			return idPattern.MatchString(segments[2])
		}
	}
	return false
}

func facebookProfile(segments []string, query url.Values) bool {
	if len(segments) == 0 {
		return false
	}
	switch segments[0] {
	case "profile.php":
		return len(segments) == 1 && digitsPattern.MatchString(query.Get("id"))
	case "pages":
		return len(segments) >= 2 && len(segments) <= 3
	case "people":
		return len(segments) == 3 && fbNumericIDPattern.MatchString(segments[2])
	}
	return len(segments) == 1 &&
		!facebookReserved[segments[0]] &&
		fbUsernamePattern.MatchString(segments[0])
}
