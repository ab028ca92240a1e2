// Package fingerprint computes the identity hash used for deduplication.
//
// A fingerprint covers DATE, THEMES, LOCATIONS, PERSONS, ORGANIZATIONS and
// SOURCES. Every other column (tone, CAMEO ids, URLs, counts) is ignored, so
// two records that differ only there are duplicates.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// KeyColumns are the fingerprinted columns, in hashing order.
var KeyColumns = []core.Column{
	core.ColDate,
	core.ColThemes,
	core.ColLocations,
	core.ColPersons,
	core.ColOrganizations,
	core.ColSources,
}

// Separator terminates each key field. Fields are also length-prefixed, so a
// separator byte inside a value cannot shift a field boundary.
const Separator = '\x1f'

// Digest is a hex-encoded SHA-256 fingerprint.
type Digest string

// Fields hashes the six key values in KeyColumns order. Values are trimmed;
// a missing value and an empty one hash the same.
func Fields(date, themes, locations, persons, organizations, sources string) Digest {
	h := sha256.New()
	var buf []byte
	for _, v := range [...]string{date, themes, locations, persons, organizations, sources} {
		v = strings.TrimSpace(v)
		buf = strconv.AppendInt(buf[:0], int64(len(v)), 10)
		buf = append(buf, ':')
		buf = append(buf, v...)
		buf = append(buf, Separator)
		h.Write(buf)
	}
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// Record fingerprints a typed record.
func Record(r core.Record) Digest {
	return Fields(r.Date, r.Themes, r.Locations, r.Persons, r.Organizations, r.SourceDomain)
}

// Row fingerprints a canonical row. Short rows treat missing cells as empty.
func Row(r core.Row) Digest {
	return Fields(
		r.Get(core.ColDate),
		r.Get(core.ColThemes),
		r.Get(core.ColLocations),
		r.Get(core.ColPersons),
		r.Get(core.ColOrganizations),
		r.Get(core.ColSources),
	)
}

// Set is a set of digests.
type Set map[Digest]struct{}

// Add inserts d and reports whether it was new.
func (s Set) Add(d Digest) bool {
	if _, ok := s[d]; ok {
		return false
	}
	s[d] = struct{}{}
	return true
}

// Has reports membership.
func (s Set) Has(d Digest) bool {
	_, ok := s[d]
	return ok
}

// OfRows fingerprints every row.
func OfRows(rows []core.Row) Set {
	s := make(Set, len(rows))
	for _, r := range rows {
		s.Add(Row(r))
	}
	return s
}
