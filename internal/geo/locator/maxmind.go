package locator

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"

	"signinguard/internal/geo"
	"signinguard/pkg/platform/sentinel"
)

// MaxMind resolves addresses against a GeoLite2/GeoIP2 City database.
// The reader is memory-mapped and safe for concurrent use.
type MaxMind struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the City database at path.
func OpenMaxMind(path string) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip city database: %w", err)
	}
	return &MaxMind{reader: reader}, nil
}

// Close releases the database mapping.
func (m *MaxMind) Close() error {
	return m.reader.Close()
}

// Locate returns nil, nil for non-routable addresses and for addresses the
// database has no data for.
func (m *MaxMind) Locate(ctx context.Context, addr netip.Addr) (*geo.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !Routable(addr) {
		return nil, nil
	}

	record, err := m.reader.City(net.IP(addr.Unmap().AsSlice()))
	if err != nil {
		return nil, fmt.Errorf("geoip city lookup: %w: %w", sentinel.ErrUnavailable, err)
	}

	// The database reports 0,0 when it has no position for a network.
	hasPosition := record.Location.Latitude != 0 || record.Location.Longitude != 0
	if record.Country.IsoCode == "" && !hasPosition {
		return nil, nil
	}

	loc := &geo.Location{
		CountryCode:      record.Country.IsoCode,
		City:             record.City.Names["en"],
		AccuracyRadiusKm: int(record.Location.AccuracyRadius),
	}
	if hasPosition {
		loc.Coordinates = &geo.Point{
			Latitude:  record.Location.Latitude,
			Longitude: record.Location.Longitude,
		}
	}
	return loc, nil
}
