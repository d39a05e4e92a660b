package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cleanText collapses runs of whitespace and trims s.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textOf returns the cleaned text of the first element of sel, or "" when sel is empty.
func textOf(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return cleanText(sel.First().Text())
}

// attrOf returns the trimmed attribute of the first element of sel.
func attrOf(sel *goquery.Selection, name string) string {
	v, _ := sel.First().Attr(name)
	return strings.TrimSpace(v)
}

// resolveURL resolves ref against base. Absolute references are returned unchanged, and
// an unparseable pair yields ref as given.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

var backgroundImagePattern = regexp.MustCompile(`url\((.*?)\)`)

// backgroundImage extracts the URL of an inline "background-image: url(...)" declaration.
func backgroundImage(style string) string {
	m := backgroundImagePattern.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), `'"`)
}

// imageOf returns the first inline background image under sel, falling back to the first
// img src.
func imageOf(sel *goquery.Selection) string {
	if styled := sel.Find("[style*='background-image']"); styled.Length() > 0 {
		if img := backgroundImage(attrOf(styled, "style")); img != "" {
			return img
		}
	}
	return attrOf(sel.Find("img"), "src")
}

// spacedText is textOf with a space between adjacent text nodes, for blocks where markup
// alone separates words ("<span>12</span><span>nov.</span>").
func spacedText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				parts = append(parts, child.Text())
				return
			}
			walk(child)
		})
	}
	walk(sel.First())
	return cleanText(strings.Join(parts, " "))
}
