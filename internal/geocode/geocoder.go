package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/codeyoulateralligator/goodreader/internal/branches"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// DefaultURL is the public Nominatim search endpoint
const DefaultURL = "https://nominatim.openstreetmap.org/search"

// Options configures a Geocoder
type Options struct {
	URL     string
	Timeout time.Duration
	Refresh bool // look up every address even when cached
}

// Geocoder resolves addresses one request per second at most
type Geocoder struct {
	probe   *probe.Client
	cache   *Cache
	url     string
	timeout time.Duration
	refresh bool
	limiter *rate.Limiter
}

// New creates a geocoder backed by cache
func New(p *probe.Client, cache *Cache, opts Options) *Geocoder {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Geocoder{
		probe:   p,
		cache:   cache,
		url:     opts.URL,
		timeout: opts.Timeout,
		refresh: opts.Refresh,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup geocodes one address without touching the cache
func (g *Geocoder) Lookup(ctx context.Context, address string) (Coord, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Coord{}, false, err
	}
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	resp, err := g.probe.Fetch(ctx, probe.Request{URL: g.url, Params: params, Timeout: g.timeout})
	if err != nil {
		return Coord{}, false, err
	}
	var places []place
	if err := probe.DecodeJSON(resp, &places); err != nil {
		return Coord{}, false, err
	}
	if len(places) == 0 {
		return Coord{}, false, nil
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coord{}, false, fmt.Errorf("bad latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coord{}, false, fmt.Errorf("bad longitude %q: %w", places[0].Lon, err)
	}
	return Coord{Lat: lat, Lon: lon}, true, nil
}

// Locate returns coordinates for every place with an address. Cached
// answers are used unless the geocoder was built with Refresh. Failed
// lookups are logged and left out; the cache is saved at the end.
func (g *Geocoder) Locate(ctx context.Context, places []branches.Place) (map[string]Coord, error) {
	coords := make(map[string]Coord)
	for _, p := range places {
		if p.Address == "" {
			continue
		}
		key := p.Key()
		if !g.refresh {
			if c, ok := g.cache.Get(key); ok {
				coords[key] = c
				continue
			}
		}
		c, ok, err := g.Lookup(ctx, p.Address)
		if err != nil {
			if ctx.Err() != nil {
				return coords, ctx.Err()
			}
			slog.Warn("Geocoding failed", "place", p.Name, "address", p.Address, "error", probe.Describe(err))
			continue
		}
		if !ok {
			slog.Debug("Address not found", "place", p.Name, "address", p.Address)
			continue
		}
		coords[key] = c
		g.cache.Set(key, c)
	}
	if err := g.cache.Save(); err != nil {
		return coords, err
	}
	return coords, nil
}
