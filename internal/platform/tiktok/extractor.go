package tiktok

import (
	"github.com/rs/zerolog"

	"social-scraper/internal/platform"
	"social-scraper/pkg/models"
)

// Native field names
const (
	FieldUsername       = "username"
	FieldNickname       = "nickname"
	FieldFollowerCount  = "follower_count"
	FieldFollowingCount = "following_count"
	FieldLikeCount      = "like_count"
	FieldVideoURLs      = "video_urls"
	FieldDescription    = "description"
	FieldCommentCount   = "comment_count"
	FieldShareCount     = "share_count"
	FieldViewCount      = "view_count"
	FieldAuthor         = "author"
	FieldUploadDate     = "upload_date"
)

const count = `([\d.,]+\s?[KMBkmb]?)`

// Definition returns the TikTok profile and video schemas
func Definition() platform.Definition {
	return platform.Definition{
		Platform:   models.PlatformTikTok,
		ItemsField: FieldVideoURLs,
		Profile: platform.Schema{
			Kind: models.KindProfile,
			Fields: []platform.Field{
				{
					Name: FieldUsername,
					Selectors: []platform.Selector{
						platform.Text(`h1[data-e2e="user-title"]`),
						platform.Text(`[data-e2e="user-title"]`),
						platform.Meta("og:url").Match(`/@([A-Za-z0-9._]+)`),
					},
					Clean: platform.Handle,
				},
				{
					Name: FieldNickname,
					Selectors: []platform.Selector{
						platform.Text(`h2[data-e2e="user-subtitle"]`),
						platform.Meta("og:title").Match(`^(.*?)\s*\(@`),
					},
				},
				{
					Name: FieldFollowerCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="followers-count"]`),
						platform.Meta("description").Match(count + `\s+Followers`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldFollowingCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="following-count"]`),
						platform.Meta("description").Match(count + `\s+Following`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldLikeCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="likes-count"]`),
						platform.Text(`strong[data-e2e="like-count"]`),
						platform.Meta("description").Match(count + `\s+Likes`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldVideoURLs,
					List: true,
					Selectors: []platform.Selector{
						platform.Attr(`div[data-e2e="user-post-item"] a`, "href"),
						platform.Attr(`a[href*="/video/"], a[href*="/photo/"]`, "href"),
					},
				},
			},
		},
		Post: platform.Schema{
			Kind: models.KindPost,
			Fields: []platform.Field{
				{
					Name: FieldDescription,
					Selectors: []platform.Selector{
						platform.Text(`[data-e2e="browse-video-desc"]`),
						platform.Text(`h1[data-e2e="video-desc"]`),
						platform.Meta("og:description"),
						platform.Meta("description"),
					},
				},
				{
					Name: FieldLikeCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="like-count"]`),
						platform.Text(`strong[data-e2e="browse-like-count"]`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldCommentCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="comment-count"]`),
						platform.Text(`strong[data-e2e="browse-comment-count"]`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldShareCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="share-count"]`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldViewCount,
					Selectors: []platform.Selector{
						platform.Text(`strong[data-e2e="video-views"]`),
						platform.Meta("interactionCount"),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldAuthor,
					Selectors: []platform.Selector{
						platform.Text(`[data-e2e="browse-username"]`),
						platform.Text(`[data-e2e="video-author-uniqueid"]`),
						platform.Attr(`link[rel="canonical"]`, "href").Match(`/@([A-Za-z0-9._]+)/`),
						platform.Meta("og:url").Match(`/@([A-Za-z0-9._]+)/`),
					},
					Clean: platform.Handle,
				},
				{
					Name: FieldUploadDate,
					Selectors: []platform.Selector{
						platform.Meta("uploadDate"),
						platform.Text(`span[data-e2e="browser-nickname"] span:last-child`),
					},
				},
			},
		},
	}
}

// NewExtractor creates the TikTok extractor
func NewExtractor(logger *zerolog.Logger) *platform.Scraper {
	return platform.NewScraper(Definition(), logger)
}
