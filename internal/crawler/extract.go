package crawler

import (
	"iter"
	"net/url"
	"strings"
)

const (
	imageSelector = "img[src]"
	linkSelector  = "a[href]"
)

// ImageCandidate is an absolutized image source and the element it came from.
type ImageCandidate struct {
	URL     string
	Element Element
}

// ImageCandidates lazily yields every img[src] of doc with its source
// resolved against the document base. Sources that do not resolve are skipped.
func ImageCandidates(doc Document) iter.Seq[ImageCandidate] {
	return func(yield func(ImageCandidate) bool) {
		for el := range doc.Select(imageSelector) {
			src := el.AbsAttr("src")
			if src == "" {
				continue
			}
			if !yield(ImageCandidate{URL: src, Element: el}) {
				return
			}
		}
	}
}

// OutboundLinks lazily yields the absolutized a[href] targets of doc that use
// the http or https scheme. mailto:, javascript: and every other scheme are
// dropped here, before any caller counts them toward a fan-out cap.
func OutboundLinks(doc Document) iter.Seq[string] {
	return func(yield func(string) bool) {
		for el := range doc.Select(linkSelector) {
			href := el.AbsAttr("href")
			if !isFollowable(href) {
				continue
			}
			if !yield(href) {
				return
			}
		}
	}
}

func isFollowable(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}
