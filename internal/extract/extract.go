// Package extract pulls visible text, candidate images, and head metadata out
// of raw page markup.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/venue-scraper/internal/imagerank"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// noiseSelector lists elements whose content never counts as page text.
const noiseSelector = "script, style, noscript, template, meta, link"

var backgroundURL = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)

var imageSourceAttrs = []string{"src", "data-src", "data-lazy-src"}

// Parse extracts text, ranked images, and metadata from an HTML document
// fetched from pageURL.
func Parse(pageURL string, body []byte) (venue.ScrapedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return venue.ScrapedContent{}, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return venue.ScrapedContent{}, fmt.Errorf("parse page url: %w", err)
	}

	meta := extractMetadata(doc, base)
	candidates := imageCandidates(doc, base)

	doc.Find(noiseSelector).Remove()

	return venue.ScrapedContent{
		URL:      pageURL,
		Text:     visibleText(doc.Selection),
		Images:   imagerank.RankScraped(meta.OGImage, candidates),
		Metadata: meta,
	}, nil
}

// NameHint derives a likely venue name from the page title, dropping the
// site-name suffixes that usually follow a "|" or "-".
func NameHint(meta venue.PageMetadata) string {
	name := meta.Title
	if strings.TrimSpace(name) == "" {
		name = meta.OGTitle
	}
	name, _, _ = strings.Cut(name, "|")
	name, _, _ = strings.Cut(name, " - ")
	return strings.TrimSpace(name)
}

func extractMetadata(doc *goquery.Document, base *url.URL) venue.PageMetadata {
	meta := venue.PageMetadata{
		Title:         strings.TrimSpace(doc.Find("title").First().Text()),
		Description:   metaContent(doc, `meta[name="description"]`),
		OGTitle:       metaContent(doc, `meta[property="og:title"]`),
		OGDescription: metaContent(doc, `meta[property="og:description"]`),
	}
	if img := metaContent(doc, `meta[property="og:image"]`); img != "" {
		meta.OGImage = resolve(base, img)
	}
	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func imageCandidates(doc *goquery.Document, base *url.URL) []imagerank.Candidate {
	var out []imagerank.Candidate
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := firstAttr(img, imageSourceAttrs...)
		if src == "" {
			return
		}
		out = append(out, imagerank.Candidate{
			URL:    resolve(base, src),
			Meta:   strings.Join([]string{attr(img, "class"), attr(img, "id"), attr(img, "alt")}, " "),
			Width:  attr(img, "width"),
			Height: attr(img, "height"),
		})
	})
	doc.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style := attr(el, "style")
		if !strings.Contains(strings.ToLower(style), "background-image") {
			return
		}
		m := backgroundURL.FindStringSubmatch(style)
		if m == nil {
			return
		}
		out = append(out, imagerank.Candidate{URL: resolve(base, m[1]), Background: true})
	})
	return out
}

func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	collectText(sel, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			b.WriteString(child.Text())
			b.WriteByte(' ')
			return
		}
		collectText(child, b)
	})
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v := attr(sel, n); v != "" {
			return v
		}
	}
	return ""
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return strings.TrimSpace(v)
}
