package imagerank

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRankByExtensionPrefersJPEG(t *testing.T) {
	t.Parallel()

	got := RankByExtension([]string{"a.webp", "b.jpg", "c.png", "d.jpeg"}, 3)
	require.Equal(t, []string{"b.jpg", "d.jpeg", "a.webp"}, got)
}

func TestRankByExtensionCaseInsensitiveAndUnbounded(t *testing.T) {
	t.Parallel()

	in := []string{"x.gif", "Y.JPG", "z.webp", "w.Jpeg"}
	got := RankByExtension(in, 0)
	require.Equal(t, []string{"Y.JPG", "w.Jpeg", "x.gif", "z.webp"}, got)
	require.Equal(t, []string{"x.gif", "Y.JPG", "z.webp", "w.Jpeg"}, in, "input must not be reordered")
}

func TestRankByExtensionEmpty(t *testing.T) {
	t.Parallel()

	got := RankByExtension(nil, 3)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestRankScrapedRepresentativeFirst(t *testing.T) {
	t.Parallel()

	got := RankScraped("https://v.example/og.webp", []Candidate{
		{URL: "https://v.example/hall.jpg"},
		{URL: "https://v.example/og.webp"},
	})
	require.Equal(t, []string{"https://v.example/og.webp", "https://v.example/hall.jpg"}, got)
}

func TestRankScrapedSkipsDecorativeImages(t *testing.T) {
	t.Parallel()

	got := RankScraped("", []Candidate{
		{URL: "https://v.example/img/brand-logo.jpg"},
		{URL: "https://v.example/img/a.jpg", Meta: "site-icon"},
		{URL: "https://v.example/img/photo.png"},
		{URL: "https://v.example/favicon.ico"},
		{URL: "https://v.example/img/small.jpg", Width: "100", Height: "100"},
		{URL: "https://v.example/img/hall.jpg", Width: "800", Height: "600"},
	})
	require.Equal(t, []string{"https://v.example/img/hall.jpg"}, got)
}

func TestRankScrapedSkipBeatsPriority(t *testing.T) {
	t.Parallel()

	got := RankScraped("", []Candidate{
		{URL: "https://v.example/uploads/resort-logo.jpg"},
		{URL: "https://v.example/uploads/beach-icon.jpeg"},
	})
	require.Empty(t, got)
}

func TestRankScrapedDimensionRules(t *testing.T) {
	t.Parallel()

	got := RankScraped("", []Candidate{
		{URL: "https://v.example/1.webp", Width: "100", Height: "400"},
		{URL: "https://v.example/2.webp", Width: "400"},
		{URL: "https://v.example/3.webp", Width: "auto", Height: "20"},
		{URL: "https://v.example/4.webp", Width: "150", Height: "150"},
	})
	require.Equal(t, []string{
		"https://v.example/2.webp",
		"https://v.example/3.webp",
		"https://v.example/4.webp",
	}, got)
}

func TestRankScrapedPriorityGroupOrdering(t *testing.T) {
	t.Parallel()

	got := RankScraped("", []Candidate{
		{URL: "https://v.example/a.webp"},
		{URL: "https://v.example/b.webp", Meta: "venue hall"},
		{URL: "https://v.example/c.gif"},
		{URL: "https://v.example/d.jpg"},
		{URL: "https://v.example/bg-venue.webp", Background: true},
	})
	require.Equal(t, []string{
		"https://v.example/b.webp",
		"https://v.example/d.jpg",
		"https://v.example/a.webp",
		"https://v.example/c.gif",
		"https://v.example/bg-venue.webp",
	}, got)
}

func TestRankScrapedDeduplicatesAndDropsDataURIs(t *testing.T) {
	t.Parallel()

	got := RankScraped("data:image/jpeg;base64,AAAA", []Candidate{
		{URL: "https://v.example/a.jpg"},
		{URL: "data:image/jpeg;base64,BBBB"},
		{URL: "https://v.example/a.jpg", Meta: "venue"},
	})
	require.Equal(t, []string{"https://v.example/a.jpg"}, got)
}

func TestRankScrapedCapsResult(t *testing.T) {
	t.Parallel()

	candidates := make([]Candidate, 0, 30)
	for i := 0; i < 30; i++ {
		candidates = append(candidates, Candidate{URL: fmt.Sprintf("https://v.example/%02d.jpg", i)})
	}
	got := RankScraped("https://v.example/og.jpg", candidates)
	require.Len(t, got, MaxScraped)
	require.Equal(t, "https://v.example/og.jpg", got[0])
	require.Equal(t, "https://v.example/00.jpg", got[1])
}
