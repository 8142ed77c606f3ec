// Package manifest fetches the update and blacklist manifests that script
// metadata points at.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxManifestSize bounds the response body read.
const maxManifestSize = 4 << 20

// UpdateInfo is one update manifest entry.
type UpdateInfo struct {
	Name    string `json:"Name"`
	Version uint   `json:"Version"`
	// Trusted entries are applied without prompting.
	Trusted bool `json:"Trusted"`
}

// BlacklistEntry names a script version that must not run.
type BlacklistEntry struct {
	Name    string `json:"Name"`
	Version uint   `json:"Version"`
}

// Blacklist is a set of banned script versions.
type Blacklist map[BlacklistEntry]struct{}

// Contains reports whether name at version is blacklisted.
func (b Blacklist) Contains(name string, version uint) bool {
	_, ok := b[BlacklistEntry{Name: name, Version: version}]
	return ok
}

// Client fetches manifests over HTTP.
type Client struct {
	httpClient *http.Client
}

// New creates a client whose requests time out after timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("manifest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("manifest %s returned status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", url, err)
	}
	return nil
}

// FetchUpdates returns the update manifest keyed by script name. When a name
// appears more than once the highest version wins.
func (c *Client) FetchUpdates(ctx context.Context, url string) (map[string]UpdateInfo, error) {
	var entries []UpdateInfo
	if err := c.getJSON(ctx, url, &entries); err != nil {
		return nil, err
	}

	out := make(map[string]UpdateInfo, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		if prev, ok := out[e.Name]; ok && prev.Version >= e.Version {
			continue
		}
		out[e.Name] = e
	}
	return out, nil
}

// FetchBlacklist returns the blacklist manifest as a set.
func (c *Client) FetchBlacklist(ctx context.Context, url string) (Blacklist, error) {
	var entries []BlacklistEntry
	if err := c.getJSON(ctx, url, &entries); err != nil {
		return nil, err
	}

	out := make(Blacklist, len(entries))
	for _, e := range entries {
		out[e] = struct{}{}
	}
	return out, nil
}
