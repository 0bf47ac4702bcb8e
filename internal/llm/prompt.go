package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/venue-scraper/internal/extract"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

const (
	maxPromptText   = 5000
	maxPromptImages = 5
)

const systemPrompt = "You are an expert at extracting structured data from venue websites. " +
	"Always return valid JSON matching the exact schema provided."

// recordSchema describes the expected reply shape with type hints.
var recordSchema = map[string]any{
	"name": "String",
	"location": map[string]string{
		"city":  "String",
		"area":  "String",
		"state": "String",
	},
	"rating": "String",
	"guest_capacity": map[string]string{
		"seated":   "Number",
		"floating": "Number",
	},
	"price_per_plate": map[string]string{
		"veg":     "Number",
		"non_veg": "Number",
	},
	"venue_type":       "[String]",
	"spaces_available": []string{"Indoor", "Outdoor"},
	"rooms_available":  "Number",
	"cover_image_urls": "[String] image links",
	"phone_number":     "String",
}

var instructions = []string{
	"Extract the venue name",
	"Extract location information (city, area, state) if available",
	"Extract rating if mentioned",
	"Extract guest capacity (seated and floating) if available",
	"Extract starting price per plate (veg and non-veg) if available",
	`Extract venue type(s); several may apply (e.g. ["indoor", "outdoor", "beach", "garden", "farm", "ballroom", "barn", "estate", "resort", "other"])`,
	"Extract available spaces (Indoor, Outdoor, or both)",
	"Extract number of rooms if available",
	"Pick the main venue photos from the image list, preferring .jpg and .jpeg links",
	"Extract the contact phone number if listed",
}

// BuildPrompt renders the user message for one scraped page.
func BuildPrompt(content venue.ScrapedContent) string {
	schema, _ := json.MarshalIndent(recordSchema, "", "  ")

	text := content.Text
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}
	images := content.Images
	if len(images) > maxPromptImages {
		images = images[:maxPromptImages]
	}

	var b strings.Builder
	b.WriteString("Extract venue information from the following website content and return it as JSON matching this exact schema:\n\n")
	b.Write(schema)
	b.WriteString("\n\nWebsite Content:\n")
	fmt.Fprintf(&b, "Title: %s\n", orNA(content.Metadata.Title))
	fmt.Fprintf(&b, "Description: %s\n", orNA(content.Metadata.Description))
	if hint := extract.NameHint(content.Metadata); hint != "" {
		fmt.Fprintf(&b, "Likely Venue Name: %s\n", hint)
	}
	fmt.Fprintf(&b, "Text Content: %s\n\n", text)
	fmt.Fprintf(&b, "Available Images: %s\n\n", strings.Join(images, ", "))
	b.WriteString("Instructions:\n")
	for i, line := range instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	b.WriteString("\nReturn ONLY valid JSON matching the schema. Use null for missing fields. For arrays, use empty array [] if none found.\n")
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
