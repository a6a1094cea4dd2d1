package goqueryparser

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

const page = `<!doctype html>
<html>
<head><title>fixture</title></head>
<body>
  <header><img src="/brand.png" width="120"></header>
  <div role="banner"><span><img src="banner-inner.png"></span></div>
  <main>
    <img src="photos/cat.jpg" width=" 100px ">
    <img src="https://cdn.other.test/x.png">
    <img>
    <a href="/about#team">About</a>
    <a href="mailto:hi@example.test">Mail</a>
    <a href="  contact  ">Contact</a>
  </main>
</body>
</html>`

func collect(doc crawler.Document, selector, attr string) []string {
	var out []string
	for el := range doc.Select(selector) {
		out = append(out, el.AbsAttr(attr))
	}
	return out
}

func TestParseResolvesAgainstPageURL(t *testing.T) {
	t.Parallel()

	doc, err := New().Parse("https://example.test/dir/index.html", []byte(page))
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://example.test/brand.png",
		"https://example.test/dir/banner-inner.png",
		"https://example.test/dir/photos/cat.jpg",
		"https://cdn.other.test/x.png",
	}, collect(doc, "img[src]", "src"))

	require.Equal(t, []string{
		"https://example.test/about#team",
		"mailto:hi@example.test",
		"https://example.test/dir/contact",
	}, collect(doc, "a[href]", "href"))
}

func TestParseHonoursBaseElement(t *testing.T) {
	t.Parallel()

	body := `<html><head><base href="/assets/"></head><body><img src="a.png"></body></html>`
	doc, err := New().Parse("https://example.test/deep/page", []byte(body))
	require.NoError(t, err)
	require.Equal(t, "https://example.test/assets/", doc.(*Document).Base())
	require.Equal(t, []string{"https://example.test/assets/a.png"}, collect(doc, "img[src]", "src"))
}

func TestElementAttrAndAncestors(t *testing.T) {
	t.Parallel()

	doc, err := New().Parse("https://example.test/", []byte(page))
	require.NoError(t, err)

	var inHeader []bool
	var widths []string
	for el := range doc.Select("img[src]") {
		inHeader = append(inHeader, el.HasAncestor("header, [role=banner]"))
		widths = append(widths, el.Attr("width"))
	}
	require.Equal(t, []bool{true, true, false, false}, inHeader)
	require.Equal(t, []string{"120", "", "100px", ""}, widths)
}

func TestSelectStopsEarly(t *testing.T) {
	t.Parallel()

	doc, err := New().Parse("https://example.test/", []byte(page))
	require.NoError(t, err)

	var seen int
	for range doc.Select("img[src]") {
		seen++
		break
	}
	require.Equal(t, 1, seen)
}

func TestParseRejectsBadBase(t *testing.T) {
	t.Parallel()

	_, err := New().Parse("http://[::1", []byte(page))
	require.Error(t, err)
}

func TestExtractorsOverGoquery(t *testing.T) {
	t.Parallel()

	doc, err := New().Parse("https://example.test/", []byte(page))
	require.NoError(t, err)

	links := slices.Collect(crawler.OutboundLinks(doc))
	require.Equal(t, []string{"https://example.test/about#team", "https://example.test/contact"}, links)

	var images []string
	for c := range crawler.ImageCandidates(doc) {
		images = append(images, c.URL)
	}
	require.Len(t, images, 4)
}
