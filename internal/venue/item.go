package venue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/venue-scraper/internal/imagerank"
)

// Item is the venue entry created for a space once a task completes.
type Item struct {
	ID              string      `json:"id"`
	SpaceID         int64       `json:"space_id"`
	Name            string      `json:"name"`
	Address         *string     `json:"address"`
	Price           *float64    `json:"price"`
	AvailableDates  []time.Time `json:"available_dates"`
	Images          []string    `json:"images"`
	Notes           *string     `json:"notes"`
	Category        *string     `json:"category"`
	IsFinalized     bool        `json:"is_finalized"`
	IsFavorite      bool        `json:"is_favorite"`
	VenueData       Record      `json:"venue_data"`
	Rating          *string     `json:"rating"`
	SpacesAvailable []string    `json:"spaces_available"`
	Link            string      `json:"link"`
	PhoneNumber     *string     `json:"phone_number"`
	CreatedAt       time.Time   `json:"created_at"`
}

var knownCategories = map[string]struct{}{
	"beach":    {},
	"indoor":   {},
	"farm":     {},
	"garden":   {},
	"ballroom": {},
	"outdoor":  {},
	"barn":     {},
	"estate":   {},
	"resort":   {},
}

// NewItem maps a record onto the venue item columns.
func NewItem(record Record, spaceID int64, sourceURL string, now time.Time) Item {
	spaces := append([]string{}, record.SpacesAvailable...)
	return Item{
		ID:              fmt.Sprintf("venue_%d_%d", now.UnixMilli(), spaceID),
		SpaceID:         spaceID,
		Name:            record.Name,
		Address:         itemAddress(record.Location),
		Price:           itemPrice(record.PricePerPlate),
		AvailableDates:  []time.Time{},
		Images:          imagerank.RankByExtension(record.CoverImageURLs, 0),
		Notes:           itemNotes(record),
		Category:        itemCategory(record.VenueType),
		VenueData:       record,
		Rating:          record.Rating,
		SpacesAvailable: spaces,
		Link:            sourceURL,
		PhoneNumber:     record.PhoneNumber,
		CreatedAt:       now,
	}
}

func itemAddress(loc Location) *string {
	parts := nonEmpty(loc.Area, loc.City, loc.State)
	if len(parts) == 0 {
		return nil
	}
	addr := strings.Join(parts, ", ")
	return &addr
}

func itemPrice(p PricePerPlate) *float64 {
	if p.NonVeg != nil && *p.NonVeg != 0 {
		v := *p.NonVeg
		return &v
	}
	if p.Veg != nil && *p.Veg != 0 {
		v := *p.Veg
		return &v
	}
	return nil
}

func itemCategory(types []string) *string {
	if len(types) == 0 {
		return nil
	}
	category := "other"
	first := strings.ToLower(strings.TrimSpace(types[0]))
	if _, ok := knownCategories[first]; ok {
		category = first
	}
	return &category
}

func itemNotes(r Record) *string {
	var parts []string
	if r.Rating != nil && *r.Rating != "" {
		parts = append(parts, "Rating: "+*r.Rating)
	}
	var capacity []string
	if r.GuestCapacity.Seated != nil && *r.GuestCapacity.Seated != 0 {
		capacity = append(capacity, "Seated: "+strconv.Itoa(*r.GuestCapacity.Seated))
	}
	if r.GuestCapacity.Floating != nil && *r.GuestCapacity.Floating != 0 {
		capacity = append(capacity, "Floating: "+strconv.Itoa(*r.GuestCapacity.Floating))
	}
	if len(capacity) > 0 {
		parts = append(parts, "Capacity: "+strings.Join(capacity, ", "))
	}
	if len(r.SpacesAvailable) > 0 {
		parts = append(parts, "Spaces: "+strings.Join(r.SpacesAvailable, ", "))
	}
	if r.RoomsAvailable != nil && *r.RoomsAvailable != 0 {
		parts = append(parts, "Rooms: "+strconv.Itoa(*r.RoomsAvailable))
	}
	if len(parts) == 0 {
		return nil
	}
	notes := strings.Join(parts, " | ")
	return &notes
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
