package crawler

import (
	"net/url"
	"strconv"
	"strings"
)

// LogoRules configures the logo heuristic. Each rule is independent: a size
// threshold <= 0, an empty selector or an empty keyword list switches that
// rule off. A LogoRules with every rule off and Disabled unset is the zero
// value and Options.WithDefaults replaces it with DefaultLogoRules; set
// Disabled to turn the heuristic off entirely.
type LogoRules struct {
	Disabled         bool
	SizeThreshold    int
	AncestorSelector string
	PathKeywords     []string
}

// DefaultLogoRules flags 100px images, images inside a page header and
// sources whose path mentions "logo".
func DefaultLogoRules() LogoRules {
	return LogoRules{
		SizeThreshold:    100,
		AncestorSelector: "header, [role=banner]",
		PathKeywords:     []string{"logo"},
	}
}

func (r LogoRules) isZero() bool {
	return !r.Disabled && r.SizeThreshold == 0 && r.AncestorSelector == "" && len(r.PathKeywords) == 0
}

// LogoClassifier flags images that are probably branding rather than content.
type LogoClassifier struct {
	rules    LogoRules
	keywords []string
}

// NewLogoClassifier compiles rules into a classifier.
func NewLogoClassifier(rules LogoRules) *LogoClassifier {
	keywords := make([]string, 0, len(rules.PathKeywords))
	for _, kw := range rules.PathKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &LogoClassifier{rules: rules, keywords: keywords}
}

// IsLikelyLogo applies the rules to an image element whose resolved source
// is src.
func (c *LogoClassifier) IsLikelyLogo(el Element, src string) bool {
	if c == nil || c.rules.Disabled {
		return false
	}
	if c.rules.SizeThreshold > 0 {
		if declaredSize(el.Attr("width")) == c.rules.SizeThreshold ||
			declaredSize(el.Attr("height")) == c.rules.SizeThreshold {
			return true
		}
	}
	if c.rules.AncestorSelector != "" && el.HasAncestor(c.rules.AncestorSelector) {
		return true
	}
	if len(c.keywords) > 0 {
		p := strings.ToLower(sourcePath(src))
		for _, kw := range c.keywords {
			if strings.Contains(p, kw) {
				return true
			}
		}
	}
	return false
}

// declaredSize parses "100" or "100px"; anything else yields -1.
func declaredSize(raw string) int {
	raw = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "px")
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return n
}

func sourcePath(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	return u.Path
}
