// The main package for the venue-scraper executable.
package main

import (
	"github.com/joho/godotenv"

	"github.com/JakeFAU/venue-scraper/cmd"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
