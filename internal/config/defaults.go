package config

import (
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		UserAgent:      probe.DefaultUserAgent,
		RequestsPerSec: 2,
		HostRates: map[string]float64{
			"nominatim.openstreetmap.org": 1,
		},
		Catalogue: CatalogueConfig{
			BaseURL:    "https://www.ester.ee",
			SearchPath: "/search~S8*est",
			EpikURL:    "https://epik.ester.ee/api/data",
			MaxHits:    4,
			MaxPages:   13,
		},
		Match: MatchConfig{
			AcceptThreshold: 0.7,
			Margin:          0.1,
		},
		Covers: CoverConfig{
			MinBytes:             1337,
			GoogleBooksMinBytes:  11264,
			GoogleBooksURL:       "https://books.google.com/books/content",
			GoogleBooksAPI:       "https://www.googleapis.com/books/v1/",
			OpenLibraryCoversURL: "https://covers.openlibrary.org",
			OpenLibrarySearchURL: "https://openlibrary.org/search.json",
			GoogleImagesURL:      "https://www.google.com/search",
		},
		Timeouts: TimeoutConfig{
			Catalogue: 60 * time.Second,
			Epik:      10 * time.Second,
			Cover:     5 * time.Second,
			Images:    6 * time.Second,
			Geocode:   10 * time.Second,
		},
		GeocodeCache: ".geocache.json",
		NominatimURL: "https://nominatim.openstreetmap.org/search",
		Workers:      1,
	}
}
