package metadata

import (
	"strings"

	"github.com/zarlcorp/civicid/internal/address"
)

// DefaultBaseURL hosts images, profiles and token URIs.
const DefaultBaseURL = "https://civicidentity.example.com"

// URLs builds the public references for an address.
type URLs struct {
	Base string
}

func (u URLs) base() string {
	b := strings.TrimRight(u.Base, "/")
	if b == "" {
		return DefaultBaseURL
	}
	return b
}

// ImageURL is where the identicon is served.
func (u URLs) ImageURL(a address.Address) string {
	return u.base() + "/images/" + a.Hex() + ".png"
}

// ProfileURL is the external profile page.
func (u URLs) ProfileURL(a address.Address) string {
	return u.base() + "/profile/" + a.Hex()
}

// TokenURI is where the metadata record is served.
func (u URLs) TokenURI(a address.Address) string {
	return u.base() + "/metadata/" + a.Hex() + ".json"
}
