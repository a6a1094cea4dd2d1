package crawler

import (
	"iter"
	"strings"
)

// fakeElement is a canned Element. abs maps attribute names to resolved
// values; ancestors lists the selectors HasAncestor answers true for.
type fakeElement struct {
	attrs     map[string]string
	abs       map[string]string
	ancestors []string
}

func (e fakeElement) Attr(name string) string {
	return strings.TrimSpace(e.attrs[name])
}

func (e fakeElement) AbsAttr(name string) string {
	return e.abs[name]
}

func (e fakeElement) HasAncestor(selector string) bool {
	for _, s := range e.ancestors {
		if s == selector {
			return true
		}
	}
	return false
}

type fakeDocument map[string][]Element

func (d fakeDocument) Select(selector string) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		for _, el := range d[selector] {
			if !yield(el) {
				return
			}
		}
	}
}

func img(src string) fakeElement {
	return fakeElement{abs: map[string]string{"src": src}}
}

func link(href string) fakeElement {
	return fakeElement{abs: map[string]string{"href": href}}
}
