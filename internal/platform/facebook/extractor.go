package facebook

import (
	"github.com/rs/zerolog"

	"social-scraper/internal/platform"
	"social-scraper/pkg/models"
)

// Native field names
const (
	FieldName          = "name"
	FieldFollowerCount = "follower_count"
	FieldLikeCount     = "like_count"
	FieldPostURLs      = "post_urls"
	FieldText          = "text"
	FieldCommentCount  = "comment_count"
	FieldShareCount    = "share_count"
	FieldAuthor        = "author"
	FieldTimestamp     = "timestamp"
)

const count = `([\d.,]+\s?[KMBkmb]?)`

// Definition returns the Facebook page and post schemas
func Definition() platform.Definition {
	return platform.Definition{
		Platform:   models.PlatformFacebook,
		ItemsField: FieldPostURLs,
		Profile: platform.Schema{
			Kind: models.KindProfile,
			Fields: []platform.Field{
				{
					Name: FieldName,
					Selectors: []platform.Selector{
						platform.Text("h1"),
						platform.Meta("og:title"),
					},
					Clean: platform.TrimSuffixes(" | Facebook"),
				},
				{
					Name: FieldFollowerCount,
					Selectors: []platform.Selector{
						platform.Text("div[data-key='followers']"),
						platform.Text(`a[href*="followers"]`).Match(count + `\s+followers`),
						platform.Meta("og:description").Match(count + `\s+followers`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldLikeCount,
					Selectors: []platform.Selector{
						platform.Text("span.like-count"),
						platform.Text(`a[href*="friends_likes"]`).Match(count + `\s+likes`),
						platform.Meta("og:description").Match(count + `\s+likes`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldPostURLs,
					List: true,
					Selectors: []platform.Selector{
						platform.Attr(`a[href*="/posts/"], a[href*="/videos/"], a[href*="permalink.php"], a[href*="/reel/"]`, "href"),
					},
				},
			},
		},
		Post: platform.Schema{
			Kind: models.KindPost,
			Fields: []platform.Field{
				{
					Name: FieldText,
					Selectors: []platform.Selector{
						platform.Text(`div[data-ad-preview="message"]`),
						platform.Text(`div[data-ad-comet-preview="message"]`),
						platform.Meta("og:description"),
					},
				},
				{
					Name: FieldLikeCount,
					Selectors: []platform.Selector{
						platform.Text("span.like-count"),
						platform.Attr(`[aria-label*="reacted"], [aria-label*="reaction"]`, "aria-label").Match(count),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldCommentCount,
					Selectors: []platform.Selector{
						platform.Text("span.comment-count"),
						platform.Text(`div[role="button"] span`).Match(count + `\s+comments?`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldShareCount,
					Selectors: []platform.Selector{
						platform.Text("span.share-count"),
						platform.Text(`div[role="button"] span`).Match(count + `\s+shares?`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldAuthor,
					Selectors: []platform.Selector{
						platform.Text("h2 strong a"),
						platform.Text("h2 a"),
						platform.Meta("og:title"),
					},
					Clean: platform.TrimSuffixes(" | Facebook"),
				},
				{
					Name: FieldTimestamp,
					Selectors: []platform.Selector{
						platform.Attr("abbr[data-utime]", "data-utime"),
						platform.Attr("abbr[title]", "title"),
						platform.Meta("article:published_time"),
					},
				},
			},
		},
	}
}

// NewExtractor creates the Facebook extractor
func NewExtractor(logger *zerolog.Logger) *platform.Scraper {
	return platform.NewScraper(Definition(), logger)
}
