// Package gcstats renders a gc.Stats occupancy snapshot as a
// github.com/google/pprof profile, so an operator debugging a running
// VM can point `pprof -top`/`pprof -web` at a dump the same way they
// would at a heap profile, instead of a bespoke text report.
package gcstats

import (
	"io"

	"github.com/google/pprof/profile"

	"ovum/internal/gc"
)

const (
	sampleTypeUnit = "bytes"
	sampleUnit     = "count"
)

// Snapshot builds a pprof Profile from g's current occupancy: one
// sample per generation, carrying byte occupancy and object count as
// its two values. gen0 has no intrusive-list bookkeeping (gc.Stats'
// doc comment explains why), so its object count is reported as 0.
func Snapshot(g *gc.GC) *profile.Profile {
	st := g.Stats()
	type gen struct {
		name  string
		bytes int64
		count int64
	}
	gens := []gen{
		{"gen0", int64(st.Gen0Bytes), 0},
		{"gen1", int64(st.Gen1Bytes), int64(st.Gen1Count)},
		{"loh", int64(st.LOHBytes), int64(st.LOHCount)},
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "bytes", Unit: sampleTypeUnit},
			{Type: "objects", Unit: sampleUnit},
		},
		PeriodType: &profile.ValueType{Type: "space", Unit: sampleTypeUnit},
		Period:     1,
	}

	for i, gn := range gens {
		fn := &profile.Function{ID: uint64(i + 1), Name: gn.name}
		loc := &profile.Location{ID: uint64(i + 1), Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)

		sample := &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{gn.bytes, gn.count},
			Label:    map[string][]string{"generation": {gn.name}},
		}
		if gn.name == "gen0" {
			sample.NumLabel = map[string][]int64{"budget": {int64(st.Gen0Budget)}}
		}
		if gn.name == "gen1" {
			sample.NumLabel = map[string][]int64{"pinned": {int64(st.Pinned)}}
		}
		p.Sample = append(p.Sample, sample)
	}

	return p
}

// Write snapshots g and writes it to w in pprof's gzip-compressed
// protobuf wire format.
func Write(w io.Writer, g *gc.GC) error {
	return Snapshot(g).Write(w)
}
