// Package store persists sign-in records. Every implementation returns
// records newest first and treats ListFilter.Before as inclusive.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"signinguard/internal/signin/models"
	"signinguard/pkg/platform/sentinel"
)

var (
	ErrInvalidRecord = errors.New("invalid sign-in record")
	ErrDuplicate     = fmt.Errorf("sign-in record already exists: %w", sentinel.ErrInvalidState)
)

// Store is the append-only sign-in log.
type Store interface {
	Append(ctx context.Context, record *models.Record) error
	List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error)
}

func validate(r *models.Record) error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case strings.TrimSpace(r.SubjectID) == "":
		return fmt.Errorf("%w: missing subject", ErrInvalidRecord)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, r.Type)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("%w: missing created_at", ErrInvalidRecord)
	case r.Coordinates != nil && !r.Coordinates.Valid():
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidRecord)
	}
	return nil
}

// newestFirst orders by CreatedAt descending, then ID descending so equal
// timestamps still page deterministically.
func newestFirst(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// paginate cuts an already ordered slice to the page.
func paginate(records []*models.Record, page models.Page) *models.ResultSet {
	if page.Offset >= len(records) {
		return &models.ResultSet{Records: []*models.Record{}}
	}
	records = records[page.Offset:]
	rs := &models.ResultSet{}
	if len(records) > page.Size {
		records = records[:page.Size]
		rs.HasMore = true
	}
	rs.Records = records
	return rs
}

func cloneRecord(r *models.Record) *models.Record {
	cp := *r
	if r.Coordinates != nil {
		pt := *r.Coordinates
		cp.Coordinates = &pt
	}
	return &cp
}
