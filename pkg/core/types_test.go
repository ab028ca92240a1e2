package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("20250401")
	require.NoError(t, err)
	assert.Equal(t, "20250401", FormatDate(d))

	for _, bad := range []string{"", "2025041", "2025-04-01", "20250431", "2025040a", "202504011"} {
		_, err := ParseDate(bad)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "expected invalid argument for %q", bad)
	}
}

func TestDateRange(t *testing.T) {
	dr, err := ParseDateRange("20250401", "20250610")
	require.NoError(t, err)
	assert.Equal(t, 71, dr.Days())

	dates := dr.Dates()
	assert.Equal(t, "20250401", dates[0])
	assert.Equal(t, "20250610", dates[len(dates)-1])
	assert.True(t, dr.Contains("20250515"))
	assert.False(t, dr.Contains("20250611"))

	_, err = ParseDateRange("20250610", "20250401")
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	assert.Error(t, DateRange{}.Validate())
	assert.Nil(t, DateRange{}.Dates())
}

func TestRecordRowRoundTrip(t *testing.T) {
	rec := Record{
		Date:          "20250401",
		ArticleCount:  1,
		Themes:        "TRIAL;BAN",
		Locations:     "4#Sydney#AS#AS02#-33.8683#151.217#-1603135",
		Persons:       "mike pence",
		Organizations: "facebook",
		Tone:          "1,2,3,4,5,6",
		CameoEventIDs: "1234100000,1235100000,1236100000",
		SourceDomain:  "bbc.com",
		SourceURL:     "https://www.bbc.com/news/world-1-2",
	}
	row := rec.Row()
	require.Len(t, row, NumColumns)
	assert.Equal(t, "1", row.Get(ColNumArts))
	assert.Equal(t, "", row.Get(ColCounts))

	back, err := RecordFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, rec, back)

	_, err = RecordFromRow(row[:5])
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestParseArticleCount(t *testing.T) {
	n, err := ParseArticleCount("1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = ParseArticleCount(" 1.0 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = ParseArticleCount("1.5")
	assert.Error(t, err)
	_, err = ParseArticleCount("one")
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestColumnString(t *testing.T) {
	assert.Equal(t, "NUMARTS", ColNumArts.String())
	assert.Equal(t, "SOURCEURLS", ColSourceURLs.String())
	assert.Equal(t, "Column(42)", Column(42).String())
}
