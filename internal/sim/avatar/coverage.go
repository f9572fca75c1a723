package avatar

import (
	"fmt"
	"strings"
)

// BodyCoverage is a bit-set over body regions. It is used both as a
// restriction (outfit blocks, coverage already granted to mounted
// accessories) and as a grant (what an accessory occupies once mounted).
type BodyCoverage uint32

const (
	CoverHead BodyCoverage = 1 << iota
	CoverFace
	CoverNeck
	CoverTorso
	CoverArms
	CoverHands
	CoverWaist
	CoverLegs
	CoverFeet
	CoverBack
)

const CoverNone BodyCoverage = 0

var coverageNames = []struct {
	bit  BodyCoverage
	name string
}{
	{CoverHead, "HEAD"},
	{CoverFace, "FACE"},
	{CoverNeck, "NECK"},
	{CoverTorso, "TORSO"},
	{CoverArms, "ARMS"},
	{CoverHands, "HANDS"},
	{CoverWaist, "WAIST"},
	{CoverLegs, "LEGS"},
	{CoverFeet, "FEET"},
	{CoverBack, "BACK"},
}

func (c BodyCoverage) Overlaps(other BodyCoverage) bool { return c&other != 0 }

func (c BodyCoverage) Has(region BodyCoverage) bool { return c&region == region }

func (c BodyCoverage) String() string {
	if c == 0 {
		return "NONE"
	}
	parts := make([]string, 0, 4)
	for _, e := range coverageNames {
		if c&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	if rest := c &^ allCoverage(); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Regions returns the individual region names set in c, in declaration order.
func (c BodyCoverage) Regions() []string {
	out := make([]string, 0, 4)
	for _, e := range coverageNames {
		if c&e.bit != 0 {
			out = append(out, e.name)
		}
	}
	return out
}

func allCoverage() BodyCoverage {
	var all BodyCoverage
	for _, e := range coverageNames {
		all |= e.bit
	}
	return all
}

// ParseCoverage maps region names (as used in catalog files) to a bit-set.
func ParseCoverage(names []string) (BodyCoverage, error) {
	var c BodyCoverage
	for _, n := range names {
		bit, ok := coverageByName(strings.ToUpper(strings.TrimSpace(n)))
		if !ok {
			return 0, fmt.Errorf("unknown body region %q", n)
		}
		c |= bit
	}
	return c, nil
}

func coverageByName(name string) (BodyCoverage, bool) {
	for _, e := range coverageNames {
		if e.name == name {
			return e.bit, true
		}
	}
	return 0, false
}
