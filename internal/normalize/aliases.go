package normalize

import (
	"social-scraper/internal/platform/facebook"
	"social-scraper/internal/platform/instagram"
	"social-scraper/internal/platform/tiktok"
	"social-scraper/internal/platform/youtube"
	"social-scraper/pkg/models"
)

type aliasKey struct {
	platform models.Platform
	kind     models.Kind
}

// aliases maps native field names to common columns. Native fields without
// an entry end up in Record.Extra.
var aliases = map[aliasKey]map[string]string{
	{models.PlatformYouTube, models.KindProfile}: {
		youtube.FieldChannelName:     models.ColAuthor,
		youtube.FieldHandle:          models.ColHandle,
		youtube.FieldSubscriberCount: models.ColFollowers,
		youtube.FieldVideoCount:      models.ColPosts,
	},
	{models.PlatformYouTube, models.KindPost}: {
		youtube.FieldTitle:        models.ColTitle,
		youtube.FieldChannelName:  models.ColAuthor,
		youtube.FieldViewCount:    models.ColViews,
		youtube.FieldLikeCount:    models.ColLikes,
		youtube.FieldCommentCount: models.ColComments,
		youtube.FieldUploadDate:   models.ColPublished,
	},
	{models.PlatformInstagram, models.KindProfile}: {
		instagram.FieldUsername:       models.ColHandle,
		instagram.FieldFullName:       models.ColAuthor,
		instagram.FieldFollowerCount:  models.ColFollowers,
		instagram.FieldFollowingCount: models.ColFollowing,
		instagram.FieldPostCount:      models.ColPosts,
	},
	{models.PlatformInstagram, models.KindPost}: {
		instagram.FieldCaption:      models.ColTitle,
		instagram.FieldAuthor:       models.ColAuthor,
		instagram.FieldLikeCount:    models.ColLikes,
		instagram.FieldCommentCount: models.ColComments,
		instagram.FieldTimestamp:    models.ColPublished,
	},
	{models.PlatformTikTok, models.KindProfile}: {
		tiktok.FieldUsername:       models.ColHandle,
		tiktok.FieldNickname:       models.ColAuthor,
		tiktok.FieldFollowerCount:  models.ColFollowers,
		tiktok.FieldFollowingCount: models.ColFollowing,
		tiktok.FieldLikeCount:      models.ColLikes,
	},
	{models.PlatformTikTok, models.KindPost}: {
		tiktok.FieldDescription:  models.ColTitle,
		tiktok.FieldAuthor:       models.ColAuthor,
		tiktok.FieldViewCount:    models.ColViews,
		tiktok.FieldLikeCount:    models.ColLikes,
		tiktok.FieldCommentCount: models.ColComments,
		tiktok.FieldUploadDate:   models.ColPublished,
	},
	{models.PlatformFacebook, models.KindProfile}: {
		facebook.FieldName:          models.ColAuthor,
		facebook.FieldFollowerCount: models.ColFollowers,
		facebook.FieldLikeCount:     models.ColLikes,
	},
	{models.PlatformFacebook, models.KindPost}: {
		facebook.FieldText:         models.ColTitle,
		facebook.FieldAuthor:       models.ColAuthor,
		facebook.FieldLikeCount:    models.ColLikes,
		facebook.FieldCommentCount: models.ColComments,
		facebook.FieldTimestamp:    models.ColPublished,
	},
}

// profileColumns are copied from a profile onto each of its post records
var profileColumns = []string{
	models.ColHandle,
	models.ColFollowers,
	models.ColFollowing,
	models.ColPosts,
}

// metricColumns hold counts and are parsed to integers
var metricColumns = map[string]bool{
	models.ColFollowers: true,
	models.ColFollowing: true,
	models.ColPosts:     true,
	models.ColViews:     true,
	models.ColLikes:     true,
	models.ColComments:  true,
}

// Aliases returns a copy of the native field to column table for a pair
func Aliases(platform models.Platform, kind models.Kind) map[string]string {
	out := make(map[string]string)
	for k, v := range aliases[aliasKey{platform, kind}] {
		out[k] = v
	}
	return out
}
