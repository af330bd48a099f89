package models

import (
	"net/netip"
	"time"

	"signinguard/internal/geo"
)

// SignInType distinguishes user-facing logins from machine token exchanges.
type SignInType string

const (
	SignInInteractive SignInType = "interactive"
	SignInMachine     SignInType = "machine"
)

func (t SignInType) Valid() bool {
	return t == SignInInteractive || t == SignInMachine
}

// Record is a historical sign-in. Records are immutable once written; the
// detector only ever reads them.
type Record struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Type        SignInType `json:"sign_in_type"`
	Succeeded   bool       `json:"succeeded"`
	CreatedAt   time.Time  `json:"created_at"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`
	City        string     `json:"city,omitempty"`
	Device      string     `json:"device,omitempty"`
}

// Attempt is the login currently being evaluated. It is built per request
// and discarded after the decision.
type Attempt struct {
	SubjectID  string
	IPAddress  netip.Addr
	OccurredAt time.Time
}

// HasIP reports whether the originating address is known.
func (a Attempt) HasIP() bool {
	return a.IPAddress.IsValid()
}

// ListFilter selects records for one subject. Before is inclusive.
type ListFilter struct {
	SubjectID     string
	Types         []SignInType
	SucceededOnly bool
	Before        time.Time
}

// Matches applies the filter to a single record. Stores that cannot push the
// filter down to their backend use it directly.
func (f ListFilter) Matches(r *Record) bool {
	if r == nil || r.SubjectID != f.SubjectID {
		return false
	}
	if f.SucceededOnly && !r.Succeeded {
		return false
	}
	if !f.Before.IsZero() && r.CreatedAt.After(f.Before) {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if r.Type == t {
			return true
		}
	}
	return false
}

// Page bounds a listing. Results are always ordered by CreatedAt descending.
type Page struct {
	Size   int
	Offset int
}

// MaxPageSize caps admin listings.
const MaxPageSize = 100

// Normalize clamps the page into a usable range.
func (p Page) Normalize() Page {
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ResultSet is one page of records, newest first.
type ResultSet struct {
	Records []*Record `json:"records"`
	HasMore bool      `json:"has_more"`
}
