// Package metadata builds the NFT metadata record for a civic identity.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zarlcorp/civicid/internal/address"
)

// TokenType tags every identity token as non-transferable.
const TokenType = "soulbound"

// trait names, in the order they appear in the record
const (
	TraitIdentityType      = "Identity Type"
	TraitDIDMethod         = "DID Method"
	TraitCreationDate      = "Creation Date"
	TraitCreationTimestamp = "Creation Timestamp"
)

// Metadata is the token metadata record. Field order is the serialized key
// order.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	ExternalURL string      `json:"external_url"`
	Attributes  []Attribute `json:"attributes"`
	Properties  Properties  `json:"properties"`
}

// Attribute is one trait. Value is a string or an integer.
type Attribute struct {
	DisplayType string `json:"display_type,omitempty"`
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
}

// Properties carries the identity bindings.
type Properties struct {
	DID     string `json:"did"`
	Address string `json:"address"`
	Type    string `json:"type"`
}

// Composer builds metadata records.
type Composer struct {
	// Clock supplies the creation time. Nil means time.Now.
	Clock func() time.Time
}

// Compose builds the record for a. Every field is a pure function of its
// inputs except the creation date and timestamp, which come from Clock.
func (c Composer) Compose(a address.Address, imageRef, externalRef string) Metadata {
	now := c.now().UTC()
	short := a.Short()

	return Metadata{
		Name:        "Civic Identity - " + short,
		Description: fmt.Sprintf("A soulbound Civic Identity NFT for %s. This token represents a decentralized identity (DID) on the blockchain.", short),
		Image:       imageRef,
		ExternalURL: externalRef,
		Attributes: []Attribute{
			{TraitType: TraitIdentityType, Value: "Civic"},
			{TraitType: TraitDIDMethod, Value: "ethr"},
			{TraitType: TraitCreationDate, Value: now.Format(time.DateOnly)},
			{DisplayType: "date", TraitType: TraitCreationTimestamp, Value: now.Unix()},
		},
		Properties: Properties{
			DID:     a.DID(),
			Address: a.Hex(),
			Type:    TokenType,
		},
	}
}

func (c Composer) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// Encode serializes m with two-space indentation and no trailing newline.
// URLs are written verbatim, without HTML escaping.
func Encode(m Metadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a serialized record. Integer trait values decode as
// float64.
func Decode(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// Trait returns the value of the named trait, or nil.
func (m Metadata) Trait(name string) any {
	for _, a := range m.Attributes {
		if a.TraitType == name {
			return a.Value
		}
	}
	return nil
}
