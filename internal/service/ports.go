package service

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// External collaborators the core consumes. Reference data lives elsewhere;
// the core only needs lookups.

type Facility struct {
	ID     uuid.UUID
	Name   string
	Level  string // primary, secondary, tertiary
	Active bool
}

type FacilityDirectory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*Facility, error)
}

type Enrollee struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

type EnrolleeDirectory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*Enrollee, error)
}

// Tariff prices are authoritative at line-add time; unit prices on claim
// lines are copied from the catalog, never taken from the caller.
type Tariff struct {
	Code      string
	UnitPrice int64 // kobo
}

type TariffCatalog interface {
	Lookup(ctx context.Context, code string) (*Tariff, error)
}

// Bundle catalog entry used for best-effort admission auto-match by ICD-10
// prefix.
type Bundle struct {
	Code        string
	ICD10Prefix string
	Price       int64 // kobo
}

type BundleCatalog interface {
	// MatchICD10 returns the bundle with the longest prefix matching the
	// code, nil when nothing matches.
	MatchICD10(ctx context.Context, icd10 string) (*Bundle, error)
}

type StoredDocument struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// DocumentStore holds supporting documents (discharge summaries, claim
// attachments). Uploads never share a transaction with claim-state
// mutations.
type DocumentStore interface {
	Store(ctx context.Context, r io.Reader, size int64, name, contentType, scope string) (*StoredDocument, error)
}
