package feed

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Relay is an intermediary endpoint that forwards a GET to the upstream
// listing API. Relays are tried in order until one returns a usable page.
type Relay struct {
	Name string `json:"name"`

	// Endpoint is the relay base URL. An empty endpoint means the upstream
	// is requested directly.
	Endpoint string `json:"endpoint"`

	// Param names the query parameter carrying the escaped upstream URL.
	// When empty, the escaped URL is the whole query string.
	Param string `json:"param"`
}

// URL returns the request URL that asks r to fetch upstream.
func (r Relay) URL(upstream string) string {
	if r.Endpoint == "" {
		return upstream
	}
	escaped := url.QueryEscape(upstream)
	sep := "?"
	if strings.Contains(r.Endpoint, "?") {
		sep = "&"
	}
	if r.Param == "" {
		if strings.HasSuffix(r.Endpoint, "?") {
			return r.Endpoint + escaped
		}
		return r.Endpoint + sep + escaped
	}
	return r.Endpoint + sep + r.Param + "=" + escaped
}

// RelayChain is a named, ordered list of relays.
type RelayChain struct {
	Name   string  `json:"name"`
	Relays []Relay `json:"relays"`
}

// LoadRelays reads a relay chain definition from a JSON file.
func LoadRelays(path string) (*RelayChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relays: %w", err)
	}

	var c RelayChain
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse relays: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks that the chain has at least one relay, that names are
// unique and that every endpoint is an absolute http(s) URL.
func (c *RelayChain) Validate() error {
	if len(c.Relays) == 0 {
		return fmt.Errorf("relay chain %q has no relays", c.Name)
	}

	names := make(map[string]bool)
	for _, r := range c.Relays {
		if r.Name == "" {
			return fmt.Errorf("relay missing name")
		}
		if names[r.Name] {
			return fmt.Errorf("duplicate relay name: %s", r.Name)
		}
		names[r.Name] = true

		if r.Endpoint == "" {
			continue
		}
		u, err := url.Parse(r.Endpoint)
		if err != nil {
			return fmt.Errorf("relay %q has invalid endpoint: %w", r.Name, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("relay %q endpoint must be an absolute http(s) URL", r.Name)
		}
	}

	return nil
}

// DefaultRelays returns the stock chain: the local relay endpoint first,
// then public CORS relays. localProxy may be empty to skip the local relay.
func DefaultRelays(localProxy string) *RelayChain {
	c := &RelayChain{Name: "default"}
	if localProxy != "" {
		c.Relays = append(c.Relays, Relay{Name: "local", Endpoint: localProxy, Param: "url"})
	}
	c.Relays = append(c.Relays,
		Relay{Name: "corsproxy", Endpoint: "https://corsproxy.io/"},
		Relay{Name: "codetabs", Endpoint: "https://api.codetabs.com/v1/proxy", Param: "quest"},
	)
	return c
}

// Direct returns a single-relay chain that talks to the upstream itself.
func Direct() *RelayChain {
	return &RelayChain{
		Name:   "direct",
		Relays: []Relay{{Name: "direct"}},
	}
}
