// Package exchange resolves an instrument's ISIN to a tracker-supported
// exchange. The broker trades everything on its own venue, which most
// portfolio trackers do not know, so exporters substitute the instrument's
// listing on a public exchange: XETRA when the instrument trades there,
// Frankfurt floor ("F") otherwise.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/PaesslerAG/jsonpath"
)

const (
	// Xetra is the exchange used when the instrument is listed there.
	Xetra = "XETRA"
	// Frankfurt is the fallback for everything else.
	Frankfurt = "F"
)

// defaultEndpoint answers instrument master data for an ISIN. The %s is
// the ISIN.
const defaultEndpoint = "https://api.boerse-frankfurt.de/v1/data/instrument_information?isin=%s"

// venuesPath extracts the venue names of an instrument payload.
const venuesPath = "$.tradingVenues[*].name"

// Cache persists resolved ISIN to exchange mappings between runs. A
// resolver loads it once and flushes after every new resolution, so an
// aborted run keeps what it learned.
type Cache interface {
	Load() (map[string]string, error)
	Flush(map[string]string) error
}

// FileCache is a Cache backed by one JSON object file.
type FileCache struct {
	Path string
}

func (c *FileCache) Load() (map[string]string, error) {
	known := make(map[string]string)
	content, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return known, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read exchange cache %q: %w", c.Path, err)
	}
	if err := json.Unmarshal(content, &known); err != nil {
		return nil, fmt.Errorf("corrupt exchange cache %q: %w", c.Path, err)
	}
	return known, nil
}

func (c *FileCache) Flush(known map[string]string) error {
	content, err := json.MarshalIndent(known, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.Path, content, 0644)
}

// memoryCache backs a resolver that should not touch the disk.
type memoryCache struct{}

func (memoryCache) Load() (map[string]string, error) { return make(map[string]string), nil }
func (memoryCache) Flush(map[string]string) error    { return nil }

// NewMemoryCache returns a cache that forgets everything between runs.
func NewMemoryCache() Cache { return memoryCache{} }

// Resolver maps ISINs to exchanges, remembering every answer in its
// cache. Not safe for concurrent use.
type Resolver struct {
	client   *http.Client
	cache    Cache
	endpoint string
	known    map[string]string
}

// NewResolver creates a resolver using the given HTTP client and cache.
func NewResolver(client *http.Client, cache Cache) (*Resolver, error) {
	known, err := cache.Load()
	if err != nil {
		return nil, err
	}
	return &Resolver{
		client:   client,
		cache:    cache,
		endpoint: defaultEndpoint,
		known:    known,
	}, nil
}

// Resolve returns the exchange for an ISIN. Resolution errs on the
// Frankfurt fallback: any lookup failure yields "F" rather than an
// error, because a wrong-but-listed venue is still importable while a
// failed export row is not. The answer, fallback included, is cached.
func (r *Resolver) Resolve(isin string) (string, error) {
	if venue, ok := r.known[isin]; ok {
		return venue, nil
	}

	venue := Frankfurt
	if r.listsOnXetra(isin) {
		venue = Xetra
	}

	r.known[isin] = venue
	if err := r.cache.Flush(r.known); err != nil {
		return venue, fmt.Errorf("cannot flush exchange cache: %w", err)
	}
	return venue, nil
}

// listsOnXetra checks the instrument's trading venues for Xetra.
func (r *Resolver) listsOnXetra(isin string) bool {
	resp, err := r.client.Get(fmt.Sprintf(r.endpoint, isin))
	if err != nil {
		log.Printf("venue lookup for %s failed (falling back to %s): %v", isin, Frankfurt, err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("venue lookup for %s: %s (falling back to %s)", isin, resp.Status, Frankfurt)
		return false
	}

	var jobj any
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(content, &jobj); err != nil {
		log.Printf("venue lookup for %s: bad payload (falling back to %s): %v", isin, Frankfurt, err)
		return false
	}

	jval, err := jsonpath.Get(venuesPath, jobj)
	if err != nil {
		log.Printf("venue lookup for %s: %q yielded nothing: %v", isin, venuesPath, err)
		return false
	}
	venues, ok := jval.([]any)
	if !ok {
		venues = []any{jval}
	}
	for _, v := range venues {
		if name, ok := v.(string); ok && name == "Xetra" {
			return true
		}
	}
	return false
}
