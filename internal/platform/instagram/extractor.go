package instagram

import (
	"github.com/rs/zerolog"

	"social-scraper/internal/platform"
	"social-scraper/pkg/models"
)

// Native field names
const (
	FieldUsername       = "username"
	FieldFullName       = "full_name"
	FieldFollowerCount  = "follower_count"
	FieldFollowingCount = "following_count"
	FieldPostCount      = "post_count"
	FieldPostURLs       = "post_urls"
	FieldCaption        = "caption"
	FieldLikeCount      = "like_count"
	FieldCommentCount   = "comment_count"
	FieldTimestamp      = "timestamp"
	FieldAuthor         = "author"
)

// Counts in og:description read "1,234 Followers, 56 Following, 78 Posts - ..."
// on profiles and "12K likes, 340 comments - user on March 3, 2024: ..." on posts
const count = `([\d.,]+\s?[KMBkmb]?)`

// Definition returns the Instagram profile and post schemas
func Definition() platform.Definition {
	return platform.Definition{
		Platform:   models.PlatformInstagram,
		ItemsField: FieldPostURLs,
		Profile: platform.Schema{
			Kind: models.KindProfile,
			Fields: []platform.Field{
				{
					Name: FieldUsername,
					Selectors: []platform.Selector{
						platform.Text("header h2"),
						platform.Meta("og:title").Match(`\(@([A-Za-z0-9._]+)\)`),
						platform.Meta("og:url").Match(`instagram\.com/([A-Za-z0-9._]+)`),
					},
					Clean: platform.Handle,
				},
				{
					Name: FieldFullName,
					Selectors: []platform.Selector{
						platform.Text("header section h1"),
						platform.Meta("og:title").Match(`^(.*?)\s*\(@`),
					},
				},
				{
					Name: FieldFollowerCount,
					Selectors: []platform.Selector{
						platform.Attr("header li:nth-child(2) span span", "title"),
						platform.Text("header li:nth-child(2) span span"),
						platform.Text("span._ac2a"),
						platform.Text("span.g47SY"),
						platform.Meta("og:description").Match(count + `\s+Followers`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldFollowingCount,
					Selectors: []platform.Selector{
						platform.Text("header li:nth-child(3) span span"),
						platform.Meta("og:description").Match(count + `\s+Following`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldPostCount,
					Selectors: []platform.Selector{
						platform.Text("header li:nth-child(1) span span"),
						platform.Meta("og:description").Match(count + `\s+Posts`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldPostURLs,
					List: true,
					Selectors: []platform.Selector{
						platform.Attr(`main article a[href*="/p/"], main article a[href*="/reel/"]`, "href"),
						platform.Attr(`a[href*="/p/"], a[href*="/reel/"]`, "href"),
					},
				},
			},
		},
		Post: platform.Schema{
			Kind: models.KindPost,
			Fields: []platform.Field{
				{
					Name: FieldCaption,
					Selectors: []platform.Selector{
						platform.Text("h1._ap3a"),
						platform.Text("div._a9zs span"),
						platform.Meta("og:description").Match(`(?s):\s*"(.+)"`),
						platform.Meta("og:title"),
					},
				},
				{
					Name: FieldLikeCount,
					Selectors: []platform.Selector{
						platform.Text("span.like-count"),
						platform.Text("section._ae5m span"),
						platform.Text("span._aacl"),
						platform.Meta("og:description").Match(count + `\s+likes`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldCommentCount,
					Selectors: []platform.Selector{
						platform.Meta("og:description").Match(count + `\s+comments`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldTimestamp,
					Selectors: []platform.Selector{
						platform.Attr("time[datetime]", "datetime"),
						platform.Meta("og:description").Match(` on ([A-Z][a-z]+ \d{1,2}, \d{4})`),
					},
				},
				{
					Name: FieldAuthor,
					Selectors: []platform.Selector{
						platform.Text("article header a"),
						platform.Meta("og:description").Match(`- ([A-Za-z0-9._]+) on `),
					},
					Clean: platform.Handle,
				},
			},
		},
	}
}

// NewExtractor creates the Instagram extractor
func NewExtractor(logger *zerolog.Logger) *platform.Scraper {
	return platform.NewScraper(Definition(), logger)
}
