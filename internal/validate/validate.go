// Package validate normalizes loosely-typed extraction output into a
// venue.Record. Normalization never fails: anything unusable becomes the
// field's zero value or nil.
package validate

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/JakeFAU/venue-scraper/internal/imagerank"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// DefaultName replaces an empty or missing venue name.
const DefaultName = "Unknown Venue"

// MaxCoverImages bounds Record.CoverImageURLs.
const MaxCoverImages = 3

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	// Digit runs longer than a national number get a "+" even when the input
	// had none.
	nationalDigits = 10
)

// Record builds a normalized record from a decoded JSON object. A nil map
// yields the all-default record.
func Record(raw map[string]any) venue.Record {
	location := asObject(raw["location"])
	capacity := asObject(raw["guest_capacity"])
	price := asObject(firstPresent(raw, "price_per_plate", "price_per_plate_starting"))

	rec := venue.Record{
		Name: text(raw["name"]),
		Location: venue.Location{
			City:  text(location["city"]),
			Area:  text(location["area"]),
			State: text(location["state"]),
		},
		Rating: optionalString(raw["rating"]),
		GuestCapacity: venue.GuestCapacity{
			Seated:   optionalInt(capacity["seated"]),
			Floating: optionalInt(capacity["floating"]),
		},
		PricePerPlate: venue.PricePerPlate{
			Veg:    optionalFloat(price["veg"]),
			NonVeg: optionalFloat(price["non_veg"]),
		},
		VenueType:       stringList(raw["venue_type"]),
		SpacesAvailable: stringList(raw["spaces_available"]),
		RoomsAvailable:  optionalInt(raw["rooms_available"]),
		CoverImageURLs: imagerank.RankByExtension(
			stringList(firstPresent(raw, "cover_image_urls", "cover_image_url")),
			MaxCoverImages,
		),
		PhoneNumber: Phone(raw["phone_number"]),
	}
	if rec.Name == "" {
		rec.Name = DefaultName
	}
	return rec
}

// Phone normalizes a phone number to its digits with an optional leading "+".
// It returns nil when the value is not a plausible number.
func Phone(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', '(', ')', '.':
			return -1
		}
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	plus := strings.HasPrefix(s, "+")
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits || !allDigits(digits) {
		return nil
	}
	if plus || len(digits) > nationalDigits {
		digits = "+" + digits
	}
	return &digits
}

func firstPresent(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// text keeps only string values; numbers, booleans and objects are dropped.
func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func optionalString(v any) *string {
	s := str(v)
	if s == "" || s == "0" || s == "false" {
		return nil
	}
	return &s
}

func optionalFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func optionalInt(v any) *int {
	f := optionalFloat(v)
	if f == nil || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	if n == 0 {
		return nil
	}
	return &n
}

func stringList(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case []string:
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
