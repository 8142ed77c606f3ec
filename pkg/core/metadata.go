// pkg/core/metadata.go
package core

// Well-known manifest locations used when a script does not override them.
const (
	DefaultUpdateURL    = "https://github.com/NightmareXIV/Splatoon/raw/master/SplatoonScripts/update.json"
	DefaultBlacklistURL = "https://github.com/NightmareXIV/Splatoon/raw/master/SplatoonScripts/blacklist.json"
)

// Metadata is the statically declared description of a script.
type Metadata struct {
	// Version is compared against the update and blacklist manifests.
	Version     uint
	Author      string
	Description string
	Website     string

	// UpdateURL points at the update manifest. A newer version from a trusted
	// entry is applied automatically; otherwise the user is prompted.
	UpdateURL string

	// BlacklistURL points at the blacklist manifest. A listed name+version is
	// disabled automatically but may be re-enabled by the user.
	BlacklistURL string
}

// NewMetadata returns metadata with the default manifest URLs.
func NewMetadata(version uint, author string) Metadata {
	return Metadata{
		Version:      version,
		Author:       author,
		UpdateURL:    DefaultUpdateURL,
		BlacklistURL: DefaultBlacklistURL,
	}
}

// WithDefaults fills empty manifest URLs with the well-known locations.
func (m Metadata) WithDefaults() Metadata {
	if m.UpdateURL == "" {
		m.UpdateURL = DefaultUpdateURL
	}
	if m.BlacklistURL == "" {
		m.BlacklistURL = DefaultBlacklistURL
	}
	return m
}
