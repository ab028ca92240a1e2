package fingerprint

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/TFMV/gkgsynth/pkg/core"
)

func sampleRecord() core.Record {
	return core.Record{
		Date:             "20250401",
		ArticleCount:     1,
		CountsAnnotation: "ARREST#alleged members#3#Houston;",
		Themes:           "TRIAL;BAN",
		Locations:        "4#Sydney#AS#AS02#-33.8683#151.217#-1603135;4#Perth#AS#AS08#-31.9522#115.8614#-1607549",
		Persons:          "mike pence;joe biden",
		Organizations:    "facebook;instagram",
		Tone:             "1.1,2.2,3.3,4.4,5.5,6.6",
		CameoEventIDs:    "1234123456,1235654321,1236111111",
		SourceDomain:     "bbc.com",
		SourceURL:        "https://www.bbc.com/news/world-1-2",
	}
}

func TestRecordDeterministic(t *testing.T) {
	r := sampleRecord()
	assert.Equal(t, Record(r), Record(r))
	assert.Len(t, string(Record(r)), 64)
}

func TestIgnoredFieldsDoNotAffectFingerprint(t *testing.T) {
	a := sampleRecord()
	b := a
	b.Tone = "0,0,0,0,0,0"
	b.CameoEventIDs = "1238000000,1238999999,1237555555"
	b.SourceURL = "https://example.com/other"
	b.CountsAnnotation = ""
	b.ArticleCount = 2
	assert.Equal(t, Record(a), Record(b))
}

func TestKeyFieldsAffectFingerprint(t *testing.T) {
	base := sampleRecord()
	mutations := []func(*core.Record){
		func(r *core.Record) { r.Date = "20250402" },
		func(r *core.Record) { r.Themes = "TERROR" },
		func(r *core.Record) { r.Locations = "x" },
		func(r *core.Record) { r.Persons = "someone" },
		func(r *core.Record) { r.Organizations = "acme" },
		func(r *core.Record) { r.SourceDomain = "cnn.com" },
	}
	for i, m := range mutations {
		r := base
		m(&r)
		assert.NotEqual(t, Record(base), Record(r), "mutation %d", i)
	}
}

func TestRowMatchesRecord(t *testing.T) {
	r := sampleRecord()
	assert.Equal(t, Record(r), Row(r.Row()))
}

func TestMissingEqualsEmpty(t *testing.T) {
	full := sampleRecord().Row()
	full[core.ColSources] = ""
	short := full[:core.ColSources]
	assert.Equal(t, Row(full), Row(short))
}

func TestTrimmed(t *testing.T) {
	a := sampleRecord()
	b := a
	b.Themes = "  " + a.Themes + "\t"
	assert.Equal(t, Record(a), Record(b))
}

func TestFieldBoundaries(t *testing.T) {
	// Joining with a plain separator would conflate these two tuples.
	a := Fields("20250401", "A\x1fB", "", "", "", "")
	b := Fields("20250401", "A", "B", "", "", "")
	assert.NotEqual(t, a, b)

	c := Fields("20250401", "A|", "B", "", "", "")
	d := Fields("20250401", "A", "|B", "", "", "")
	assert.NotEqual(t, c, d)
}

func TestSet(t *testing.T) {
	s := make(Set)
	d := Record(sampleRecord())
	assert.True(t, s.Add(d))
	assert.False(t, s.Add(d))
	assert.True(t, s.Has(d))

	rows := []core.Row{sampleRecord().Row(), sampleRecord().Row()}
	assert.Len(t, OfRows(rows), 1)
}

func TestPropertyFieldSplitsNeverCollide(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("moving a boundary changes the digest", prop.ForAll(
		func(left, right string, cut int) bool {
			joined := left + right
			if len(joined) == 0 {
				return true
			}
			cut = cut % (len(joined) + 1)
			a := Fields("20250401", left, right, "", "", "")
			b := Fields("20250401", joined[:cut], joined[cut:], "", "", "")
			if cut == len(left) {
				return a == b
			}
			return a != b
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 1000),
	))

	properties.Property("fingerprint is deterministic", prop.ForAll(
		func(themes, persons string) bool {
			return Fields("20250401", themes, "", persons, "", "") ==
				Fields("20250401", themes, "", persons, "", "")
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
