// Package ledger keeps an encrypted record of generated identities so they
// can be listed, inspected and forgotten later.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/artifact"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
)

const collection = "identities"

// ErrNotFound is returned when no record exists for an address.
var ErrNotFound = errors.New("identity not found")

// Record describes one generated identity.
type Record struct {
	Address   string    `json:"address"`
	DID       string    `json:"did"`
	Image     string    `json:"image"`
	Metadata  string    `json:"metadata"`
	TokenURI  string    `json:"token_uri"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord builds the record for a generated address.
func NewRecord(a address.Address, paths artifact.Paths, tokenURI string, createdAt time.Time) Record {
	return Record{
		Address:   a.Hex(),
		DID:       a.DID(),
		Image:     paths.Image,
		Metadata:  paths.Metadata,
		TokenURI:  tokenURI,
		CreatedAt: createdAt.UTC(),
	}
}

// Ledger is an encrypted collection of records keyed by canonical address.
type Ledger struct {
	store   *zstore.Store
	records *zstore.Collection[Record]
}

// Open opens or initializes the ledger on fsys. A wrong password yields an
// error wrapping zstore.ErrWrongPassword.
func Open(fsys zfilesystem.ReadWriteFileFS, password []byte) (*Ledger, error) {
	s, err := zstore.Open(fsys, password)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	col, err := zstore.NewCollection[Record](s, collection)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &Ledger{store: s, records: col}, nil
}

// Put stores r, replacing any record for the same address.
func (l *Ledger) Put(r Record) error {
	a, err := address.Parse(r.Address)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	r.Address = a.Hex()

	if err := l.records.Put(a.Hex(), r); err != nil {
		return fmt.Errorf("put record %s: %w", a.Hex(), err)
	}
	return nil
}

// Get returns the record for a.
func (l *Ledger) Get(a address.Address) (Record, error) {
	r, err := l.records.Get(a.Hex())
	if err != nil {
		// zstore does not distinguish a missing key from a failed read
		return Record{}, fmt.Errorf("%w: %s: %w", ErrNotFound, a.Hex(), err)
	}
	return r, nil
}

// List returns every record, newest first.
func (l *Ledger) List() ([]Record, error) {
	rs, err := l.records.List()
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].Address < rs[j].Address
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
	return rs, nil
}

// Delete removes the record for a.
func (l *Ledger) Delete(a address.Address) error {
	if _, err := l.Get(a); err != nil {
		return err
	}
	if err := l.records.Delete(a.Hex()); err != nil {
		return fmt.Errorf("delete record %s: %w", a.Hex(), err)
	}
	return nil
}

// Close erases the ledger key from memory.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	l.store.Close()
	l.store = nil
	return nil
}
