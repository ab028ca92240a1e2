// Package generator produces synthetic GKG records from value pools.
package generator

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/pools"
)

// DefaultCountsProbability is the chance that a record carries a counts
// annotation.
const DefaultCountsProbability = 0.4

const (
	minLocations = 2
	maxLocations = 6
	minCameoIDs  = 3
	maxCameoIDs  = 8
	cameoMin     = 100000
	cameoMax     = 999999
)

// ToneField describes how one of the six tone values is drawn.
type ToneField struct {
	Min       float64
	Max       float64
	Precision int
}

// DefaultTone mirrors observed GKG tone distributions.
var DefaultTone = [6]ToneField{
	{Min: -5, Max: 5, Precision: 13},
	{Min: 5, Max: 15, Precision: 11},
	{Min: 0, Max: 10, Precision: 12},
	{Min: 5, Max: 15, Precision: 11},
	{Min: 15, Max: 30, Precision: 10},
	{Min: 0, Max: 5, Precision: 14},
}

// Options tune the generation policy.
type Options struct {
	// CountsProbability is the chance of a non-empty counts annotation. It
	// overrides DefaultCountsProbability when non-nil.
	CountsProbability *float64

	// Tone overrides DefaultTone when non-nil.
	Tone *[6]ToneField
}

// Generator draws records from a single random stream. It is not safe for
// concurrent use; give each worker its own Generator.
type Generator struct {
	pools *pools.Pools
	rng   *rand.Rand
	opts  Options
}

// New creates a generator seeded with seed.
func New(p *pools.Pools, seed int64, opts Options) *Generator {
	if opts.Tone == nil {
		tone := DefaultTone
		opts.Tone = &tone
	}
	if opts.CountsProbability == nil {
		p := DefaultCountsProbability
		opts.CountsProbability = &p
	}
	return &Generator{
		pools: p,
		rng:   rand.New(rand.NewSource(seed)),
		opts:  opts,
	}
}

// DaySeed derives a per-day seed so that each partition gets its own
// reproducible stream regardless of the order days are processed in.
func DaySeed(seed int64, date string) int64 {
	h := fnv.New64a()
	h.Write([]byte(date))
	return seed ^ int64(h.Sum64())
}

// Generate returns one record for date.
func (g *Generator) Generate(date string) (core.Record, error) {
	if _, err := core.ParseDate(date); err != nil {
		return core.Record{}, err
	}
	return core.Record{
		Date:             date,
		ArticleCount:     1,
		CountsAnnotation: g.counts(),
		Themes:           g.pick(g.pools.Themes),
		Locations:        g.locations(),
		Persons:          g.pick(g.pools.Persons),
		Organizations:    g.pick(g.pools.Organizations),
		Tone:             g.tone(),
		CameoEventIDs:    g.cameoIDs(),
		SourceDomain:     g.pick(g.pools.Sources),
		SourceURL:        g.sourceURL(),
	}, nil
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// intBetween returns a uniform integer in [lo, hi].
func (g *Generator) intBetween(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) counts() string {
	if g.rng.Float64() >= *g.opts.CountsProbability {
		return ""
	}
	action := g.pick(g.pools.Counts.Actions)
	location := g.pick(g.pools.Counts.Locations)
	return action + "#" + location + ";"
}

// locations samples 2-6 distinct pool entries without replacement.
func (g *Generator) locations() string {
	hi := min(maxLocations, len(g.pools.Locations))
	n := g.intBetween(minLocations, hi)
	perm := g.rng.Perm(len(g.pools.Locations))
	picked := make([]string, n)
	for i := 0; i < n; i++ {
		picked[i] = g.pools.Locations[perm[i]]
	}
	return strings.Join(picked, ";")
}

func (g *Generator) tone() string {
	values := make([]string, len(g.opts.Tone))
	for i, f := range g.opts.Tone {
		v := f.Min + g.rng.Float64()*(f.Max-f.Min)
		values[i] = formatRounded(v, f.Precision)
	}
	return strings.Join(values, ",")
}

// formatRounded rounds v to precision decimals and prints the shortest
// representation, dropping trailing zeros.
func formatRounded(v float64, precision int) string {
	scale := math.Pow(10, float64(precision))
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // normalize -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func (g *Generator) cameoIDs() string {
	n := g.intBetween(minCameoIDs, maxCameoIDs)
	ids := make([]string, n)
	for i := range ids {
		prefix := g.pools.CameoPrefixes[g.rng.Intn(len(g.pools.CameoPrefixes))]
		ids[i] = strconv.Itoa(prefix) + strconv.Itoa(g.intBetween(cameoMin, cameoMax))
	}
	return strings.Join(ids, ",")
}

// sourceURL fills a template chosen independently of the source domain.
func (g *Generator) sourceURL() string {
	t := g.pools.URLTemplates[g.rng.Intn(len(g.pools.URLTemplates))]
	var sb strings.Builder
	rest := t.Pattern
	for _, r := range t.Params {
		i := strings.Index(rest, pools.Placeholder)
		if i < 0 {
			break
		}
		sb.WriteString(rest[:i])
		sb.WriteString(strconv.Itoa(g.intBetween(r.Min, r.Max)))
		rest = rest[i+len(pools.Placeholder):]
	}
	sb.WriteString(rest)
	return sb.String()
}
