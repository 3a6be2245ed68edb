package youtube

import (
	"github.com/rs/zerolog"

	"social-scraper/internal/platform"
	"social-scraper/pkg/models"
)

// Native field names
const (
	FieldChannelName     = "channel_name"
	FieldHandle          = "handle"
	FieldSubscriberCount = "subscriber_count"
	FieldVideoCount      = "video_count"
	FieldDescription     = "description"
	FieldVideoURLs       = "video_urls"
	FieldTitle           = "title"
	FieldViewCount       = "view_count"
	FieldLikeCount       = "like_count"
	FieldUploadDate      = "upload_date"
	FieldCommentCount    = "comment_count"
)

var trimTitle = platform.TrimSuffixes(" - YouTube")

// Definition returns the YouTube channel and video schemas
func Definition() platform.Definition {
	return platform.Definition{
		Platform:   models.PlatformYouTube,
		ItemsField: FieldVideoURLs,
		Profile: platform.Schema{
			Kind: models.KindProfile,
			Fields: []platform.Field{
				{
					Name: FieldChannelName,
					Selectors: []platform.Selector{
						platform.Text("yt-formatted-string.ytd-channel-name"),
						platform.Text("ytd-channel-name h1"),
						platform.Text("yt-page-header-renderer h1"),
						platform.Meta("og:title"),
					},
					Clean: trimTitle,
				},
				{
					Name: FieldHandle,
					Selectors: []platform.Selector{
						platform.Text("#channel-handle"),
						platform.Attr(`link[rel="canonical"]`, "href").Match(`/(@[^/?#]+)`),
						platform.Meta("og:url").Match(`/(@[^/?#]+)`),
					},
					Clean: platform.Handle,
				},
				{
					Name: FieldSubscriberCount,
					Selectors: []platform.Selector{
						platform.Text("#subscriber-count"),
						platform.Text("#metadata-container #subscriber-count"),
						platform.Text("yt-content-metadata-view-model").Match(`([\d.,]+\s?[KMBkmb]?)\s+subscribers`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldVideoCount,
					Selectors: []platform.Selector{
						platform.Text("#videos-count"),
						platform.Text("yt-content-metadata-view-model").Match(`([\d.,]+\s?[KMBkmb]?)\s+videos`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldDescription,
					Selectors: []platform.Selector{
						platform.Meta("og:description"),
						platform.Meta("description"),
					},
				},
				{
					Name: FieldVideoURLs,
					List: true,
					Selectors: []platform.Selector{
						platform.Attr("a#video-title-link, a#video-title, a#thumbnail", "href"),
						platform.Attr(`a[href*="/watch?v="], a[href^="/shorts/"]`, "href"),
					},
				},
			},
		},
		Post: platform.Schema{
			Kind: models.KindPost,
			Fields: []platform.Field{
				{
					Name: FieldTitle,
					Selectors: []platform.Selector{
						platform.Text("ytd-watch-metadata h1.ytd-watch-metadata yt-formatted-string"),
						platform.Text("#title h1 yt-formatted-string"),
						platform.Text("h1.ytd-video-primary-info-renderer yt-formatted-string"),
						platform.Meta("og:title"),
						platform.Meta("title"),
						platform.Text("title"),
					},
					Clean: trimTitle,
				},
				{
					Name: FieldViewCount,
					Selectors: []platform.Selector{
						platform.Text("ytd-video-view-count-renderer span.view-count"),
						platform.Text("#info-container #info span:first-child"),
						platform.Meta("interactionCount"),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldLikeCount,
					Selectors: []platform.Selector{
						platform.Text("#top-level-buttons-computed ytd-toggle-button-renderer:first-child #text"),
						platform.Text("like-button-view-model button .yt-spec-button-shape-next__button-text-content"),
						platform.Attr("like-button-view-model button", "aria-label").Match(`([\d.,]+\s?[KMBkmb]?)`),
					},
					Clean: platform.CountText,
				},
				{
					Name: FieldUploadDate,
					Selectors: []platform.Selector{
						platform.Meta("uploadDate"),
						platform.Meta("datePublished"),
						platform.Text("#info-strings yt-formatted-string"),
					},
				},
				{
					Name: FieldChannelName,
					Selectors: []platform.Selector{
						platform.Text("ytd-video-owner-renderer ytd-channel-name a"),
						platform.Text("#owner #channel-name a"),
						platform.Attr(`span[itemprop="author"] link[itemprop="name"]`, "content"),
					},
				},
				{
					Name: FieldCommentCount,
					Selectors: []platform.Selector{
						platform.Text("ytd-comments-header-renderer #count .count-text"),
						platform.Text("#comments #count"),
					},
					Clean: platform.CountText,
				},
			},
		},
	}
}

// NewExtractor creates the YouTube extractor
func NewExtractor(logger *zerolog.Logger) *platform.Scraper {
	return platform.NewScraper(Definition(), logger)
}
