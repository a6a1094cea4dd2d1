package crawler

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageCandidates_SkipsUnresolved(t *testing.T) {
	t.Parallel()

	doc := fakeDocument{
		imageSelector: {
			img("https://example.com/a.png"),
			img(""),
			img("https://cdn.other.org/b.png"),
		},
	}

	var got []string
	for c := range ImageCandidates(doc) {
		got = append(got, c.URL)
		require.NotNil(t, c.Element)
	}
	require.Equal(t, []string{"https://example.com/a.png", "https://cdn.other.org/b.png"}, got)
}

func TestOutboundLinks_FiltersSchemes(t *testing.T) {
	t.Parallel()

	doc := fakeDocument{
		linkSelector: {
			link("mailto:team@example.com"),
			link("javascript:void(0)"),
			link("https://example.com/about"),
			link("ftp://example.com/file"),
			link(""),
			link("http://example.com/contact"),
			link("tel:+15555550100"),
		},
	}

	got := slices.Collect(OutboundLinks(doc))
	require.Equal(t, []string{"https://example.com/about", "http://example.com/contact"}, got)
}

func TestOutboundLinks_StopsEarly(t *testing.T) {
	t.Parallel()

	doc := fakeDocument{
		linkSelector: {
			link("https://example.com/1"),
			link("https://example.com/2"),
			link("https://example.com/3"),
		},
	}

	var got []string
	for href := range OutboundLinks(doc) {
		got = append(got, href)
		if len(got) == 2 {
			break
		}
	}
	require.Len(t, got, 2)
}

func TestIsFollowable(t *testing.T) {
	t.Parallel()

	require.True(t, isFollowable("https://example.com"))
	require.True(t, isFollowable("HTTP://example.com/x"))
	require.False(t, isFollowable("https:///nohost"))
	require.False(t, isFollowable("example.com/path"))
	require.False(t, isFollowable("data:image/png;base64,AAAA"))
}
