// Package imagerank orders candidate image URLs so that representative venue
// photos come before decorative assets.
package imagerank

import (
	"sort"
	"strconv"
	"strings"
)

// MaxScraped bounds the list returned by RankScraped.
const MaxScraped = 20

// MinDimension is the smallest declared width or height accepted.
const MinDimension = 150

var skipKeywords = []string{
	"icon", "logo", "favicon", "sprite", "button", "arrow",
	"social", "share", "nav", "menu", "avatar", "thumbnail",
}

var skipExtensions = []string{".png", ".ico"}

var priorityKeywords = []string{"jpeg", "jpg", "resort", "beach", "venue", "upload"}

// Candidate is an image reference found on a page.
type Candidate struct {
	// URL must already be absolute.
	URL string
	// Meta is the element's class, id, and alt text joined by spaces.
	Meta string
	// Width and Height are the raw declared attribute values.
	Width  string
	Height string
	// Background marks images taken from inline style declarations. They are
	// never promoted to the priority group.
	Background bool
}

// RankScraped filters and orders page images. The representative image (the
// page's og:image) leads when set. Remaining candidates are split into a
// priority group and a regular group, each kept in document order.
func RankScraped(representative string, candidates []Candidate) []string {
	seen := make(map[string]struct{}, len(candidates)+1)
	out := make([]string, 0, MaxScraped)
	add := func(dst *[]string, u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		*dst = append(*dst, u)
	}

	if representative = strings.TrimSpace(representative); representative != "" && !isDataURI(representative) {
		add(&out, representative)
	}

	var priority, regular []string
	for _, c := range candidates {
		u := strings.TrimSpace(c.URL)
		if u == "" || isDataURI(u) || skipped(c) {
			continue
		}
		if !c.Background && prioritized(c) {
			add(&priority, u)
			continue
		}
		add(&regular, u)
	}

	out = append(out, priority...)
	out = append(out, regular...)
	if len(out) > MaxScraped {
		out = out[:MaxScraped]
	}
	return out
}

// RankByExtension moves .jpg/.jpeg URLs ahead of everything else, keeping the
// relative order within each group, and truncates to limit when limit > 0.
func RankByExtension(urls []string, limit int) []string {
	out := make([]string, len(urls))
	copy(out, urls)
	sort.SliceStable(out, func(i, j int) bool {
		return isJPEG(out[i]) && !isJPEG(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func skipped(c Candidate) bool {
	lowerURL := strings.ToLower(c.URL)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(lowerURL, ext) {
			return true
		}
	}
	if containsAny(lowerURL+" "+strings.ToLower(c.Meta), skipKeywords) {
		return true
	}
	return tooSmall(c.Width, c.Height)
}

func prioritized(c Candidate) bool {
	return containsAny(strings.ToLower(c.URL)+" "+strings.ToLower(c.Meta), priorityKeywords)
}

// tooSmall applies only when both dimensions are declared as integers.
func tooSmall(width, height string) bool {
	w, errW := strconv.Atoi(strings.TrimSpace(width))
	h, errH := strconv.Atoi(strings.TrimSpace(height))
	if errW != nil || errH != nil {
		return false
	}
	return w < MinDimension || h < MinDimension
}

func isJPEG(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}

func isDataURI(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "data:")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
