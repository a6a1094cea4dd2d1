// Package crawler implements the image discovery engine: a depth-bounded,
// domain-scoped, deduplicating traversal over a site's hyperlink graph that
// collects same-domain images and skips probable logos.
//
// The engine depends only on the Fetcher and Parser interfaces; the colly
// transport and the goquery parser live in their own packages so tests can
// drive the traversal against in-memory fixtures.
package crawler
