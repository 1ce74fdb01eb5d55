package screener

import (
	"math"
	"sort"
)

// Mode selects how the preset seed list interacts with guardrail-screened
// backfill from the full universe.
type Mode string

const (
	ModeSeedOnly           Mode = "seed_only"
	ModeSeedGuardrailBlend Mode = "seed_guardrail_blend"
	ModeGuardrailOnly      Mode = "guardrail_only"
)

// Candidate is one symbol's raw market snapshot prior to ranking.
type Candidate struct {
	Symbol         string
	Volume         float64
	Price          float64
	ChangePercent  float64
	Sector         string
	BrokerTradable bool
	Fractionable   bool
}

// Ranked is a Candidate with its derived ranking fields attached.
type Ranked struct {
	Candidate
	DollarVolume float64
	SpreadBps    float64
	Score        float64
	Tradable     bool
	Reason       string
}

// Guardrails bounds the universe a screening pass may select from.
type Guardrails struct {
	MinDollarVolume       float64
	MaxSpreadBps          float64
	MaxSectorWeightPct    float64
	RequireBrokerTradable bool
	RequireFractionable   bool
	HeldSymbols           map[string]bool
}

// enrich attaches dollar volume, spread, and a composite score (liquidity,
// trend, spread; sector plays no part) to every candidate. Spread is a liquidity-decaying heuristic, not a quoted
// market spread: wider for thinly traded names, floored at 4bps.
func enrich(candidates []Candidate) []Ranked {
	maxVolume := 1.0
	for _, c := range candidates {
		if c.Volume > maxVolume {
			maxVolume = c.Volume
		}
	}
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		dollarVolume := c.Volume * c.Price
		spreadBps := math.Max(4.0, 30.0-math.Min(24.0, c.Volume/7_000_000.0))
		liquidity := math.Min(100.0, (c.Volume/maxVolume)*100.0)
		trend := math.Max(0.0, 100.0-math.Abs(c.ChangePercent)*4.5)
		spreadScore := math.Max(0.0, 100.0-spreadBps*2.2)
		score := liquidity*0.5 + trend*0.3 + spreadScore*0.2
		out = append(out, Ranked{Candidate: c, DollarVolume: dollarVolume, SpreadBps: spreadBps, Score: score})
	}
	return out
}

// Rank scores candidates and returns up to limit symbols, applying
// liquidity/spread/capability guardrails, a continuity bonus for already
// held symbols, and a per-sector concentration cap. When the cap leaves
// fewer than limit symbols, the remaining tradable symbols fill the open
// slots regardless of sector.
func Rank(candidates []Candidate, limit int, g Guardrails) []Ranked {
	ranked := enrich(candidates)

	for i := range ranked {
		r := &ranked[i]
		r.Tradable = r.DollarVolume >= g.MinDollarVolume && r.SpreadBps <= g.MaxSpreadBps
		if g.RequireBrokerTradable && !r.BrokerTradable {
			r.Tradable = false
		}
		if g.RequireFractionable && !r.Fractionable {
			r.Tradable = false
		}
		if g.HeldSymbols[r.Symbol] {
			r.Score += 3.0
			r.Tradable = true
		}
		if r.Tradable {
			r.Reason = "ranked candidate"
		} else {
			r.Reason = "filtered: below liquidity/spread/capability guardrails"
		}
	}

	tradable := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Tradable {
			tradable = append(tradable, r)
		}
	}
	sort.SliceStable(tradable, func(i, j int) bool { return tradable[i].Score > tradable[j].Score })

	maxSectorFraction := math.Max(0.1, math.Min(1.0, g.MaxSectorWeightPct/100.0))
	perSectorCap := int(math.Ceil(float64(limit) * maxSectorFraction))
	if perSectorCap < 1 {
		perSectorCap = 1
	}

	selected := make([]Ranked, 0, limit)
	chosen := make(map[string]bool, limit)
	sectorCounts := map[string]int{}
	for _, r := range tradable {
		if sectorCounts[r.Sector] >= perSectorCap {
			continue
		}
		selected = append(selected, r)
		chosen[r.Symbol] = true
		sectorCounts[r.Sector]++
		if len(selected) >= limit {
			break
		}
	}
	if len(selected) < limit {
		for _, r := range tradable {
			if chosen[r.Symbol] {
				continue
			}
			selected = append(selected, r)
			chosen[r.Symbol] = true
			if len(selected) >= limit {
				break
			}
		}
	}
	return selected
}

// SelectUniverse applies one of the three preset-vs-universe modes: a
// seed list that never backfills, a seed list topped up from the full
// ranked universe, or a pure guardrail ranking that ignores presets.
func SelectUniverse(mode Mode, seeds []string, universe []Candidate, limit int, g Guardrails) []Ranked {
	switch mode {
	case ModeGuardrailOnly:
		return Rank(universe, limit, g)
	case ModeSeedOnly:
		seedSet := toSet(seeds)
		filtered := filterBySymbols(universe, seedSet)
		return Rank(filtered, limit, g)
	default: // ModeSeedGuardrailBlend
		seedSet := toSet(seeds)
		seedCandidates := filterBySymbols(universe, seedSet)
		ranked := Rank(seedCandidates, limit, g)
		if len(ranked) >= limit {
			return ranked
		}
		chosen := make(map[string]bool, len(ranked))
		for _, r := range ranked {
			chosen[r.Symbol] = true
		}
		remaining := make([]Candidate, 0, len(universe))
		for _, c := range universe {
			if !chosen[c.Symbol] {
				remaining = append(remaining, c)
			}
		}
		backfill := Rank(remaining, limit-len(ranked), g)
		return append(ranked, backfill...)
	}
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func filterBySymbols(candidates []Candidate, symbols map[string]bool) []Candidate {
	out := make([]Candidate, 0, len(symbols))
	for _, c := range candidates {
		if symbols[c.Symbol] {
			out = append(out, c)
		}
	}
	return out
}
