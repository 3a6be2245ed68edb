package tiktok

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"social-scraper/internal/browser"
	"social-scraper/internal/link"
	"social-scraper/internal/platform"
	"social-scraper/pkg/models"
)

const profileHTML = `<html><head>
<meta property="og:url" content="https://www.tiktok.com/@khaby.lame">
</head><body>
<h1 data-e2e="user-title">khaby.lame</h1>
<h2 data-e2e="user-subtitle">Khabane lame</h2>
<strong title="Following" data-e2e="following-count">78</strong>
<strong title="Followers" data-e2e="followers-count">162.2M</strong>
<strong title="Likes" data-e2e="likes-count">2.5B</strong>
<div data-e2e="user-post-item"><a href="https://www.tiktok.com/@khaby.lame/video/7234567890123456789">v1</a></div>
<div data-e2e="user-post-item"><a href="https://www.tiktok.com/@khaby.lame/video/7234567890123456790">v2</a></div>
</body></html>`

const videoHTML = `<html><head>
<link rel="canonical" href="https://www.tiktok.com/@khaby.lame/video/7234567890123456789">
</head><body>
<h1 data-e2e="browse-video-desc">When life gives you lemons #fyp</h1>
<strong data-e2e="like-count">1.1M</strong>
<strong data-e2e="comment-count">8,765</strong>
<strong data-e2e="share-count">12.3K</strong>
<span data-e2e="browser-nickname"><span>Khabane lame</span><span> · </span><span>2023-5-12</span></span>
</body></html>`

func newExtractor() *platform.Scraper {
	logger := zerolog.Nop()
	return NewExtractor(&logger)
}

func parse(t *testing.T, raw string) *models.Link {
	t.Helper()
	l, err := link.Parse(raw, models.PlatformTikTok)
	if err != nil {
		t.Fatalf("Expected %s to parse, got %v", raw, err)
	}
	return l
}

func TestExtractVideo(t *testing.T) {
	session := browser.NewSession(browser.NewStaticEngine(map[string]string{
		"https://tiktok.com/@khaby.lame/video/7234567890123456789": videoHTML,
	}), browser.Options{Retries: 1})

	extraction, err := newExtractor().Extract(context.Background(), session, parse(t, "https://www.tiktok.com/@khaby.lame/video/7234567890123456789?is_from_webapp=1&sender_device=pc"), 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := map[string]string{
		FieldDescription:  "When life gives you lemons #fyp",
		FieldLikeCount:    "1.1M",
		FieldCommentCount: "8,765",
		FieldShareCount:   "12.3K",
		FieldAuthor:       "khaby.lame",
		FieldUploadDate:   "2023-5-12",
	}
	for field, want := range expected {
		if got, _ := extraction.Primary.Field(field); got != want {
			t.Errorf("Expected %s = %q, got %q", field, want, got)
		}
	}
	if _, ok := extraction.Primary.Field(FieldViewCount); ok {
		t.Error("Expected view_count to be missing on a video page")
	}
}

func TestExtractProfile(t *testing.T) {
	session := browser.NewSession(browser.NewStaticEngine(map[string]string{
		"https://tiktok.com/@khaby.lame":                           profileHTML,
		"https://tiktok.com/@khaby.lame/video/7234567890123456789": videoHTML,
		"https://tiktok.com/@khaby.lame/video/7234567890123456790": videoHTML,
	}), browser.Options{Retries: 1})

	extraction, err := newExtractor().Extract(context.Background(), session, parse(t, "tiktok.com/@khaby.lame"), 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := map[string]string{
		FieldUsername:       "khaby.lame",
		FieldNickname:       "Khabane lame",
		FieldFollowerCount:  "162.2M",
		FieldFollowingCount: "78",
		FieldLikeCount:      "2.5B",
	}
	for field, want := range expected {
		if got, _ := extraction.Primary.Field(field); got != want {
			t.Errorf("Expected %s = %q, got %q", field, want, got)
		}
	}
	if len(extraction.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(extraction.Items))
	}
}

func TestExtractEmptyPage(t *testing.T) {
	session := browser.NewSession(browser.NewStaticEngine(map[string]string{
		"https://tiktok.com/@ghost": `<html><body><div>Couldn't find this account</div></body></html>`,
	}), browser.Options{Retries: 1})

	_, err := newExtractor().Extract(context.Background(), session, parse(t, "https://tiktok.com/@ghost"), 5)
	if !errors.Is(err, models.ErrEmptyExtraction) {
		t.Errorf("Expected ErrEmptyExtraction, got %v", err)
	}
}
