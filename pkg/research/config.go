package research

import "time"

// Config bounds and tunes a research run. Zero values fall back to the
// defaults below, so callers only set what they care about.
type Config struct {
	// MaxIterations is the hard cap on loop passes.
	MaxIterations int
	// MaxWallClock is the hard cap on total run time.
	MaxWallClock time.Duration
	// MinNewSourceRatio is the depth threshold: when the sources added in
	// the recent window make up at most this fraction of everything known,
	// the depth criterion counts as satisfied.
	MinNewSourceRatio float64
	// ShrinkTolerance is the accepted summary length ratio after a merge.
	// An integration result shorter than ShrinkTolerance * len(prior) is
	// rejected and the prior summary kept.
	ShrinkTolerance float64
	// DepthWindow is how many recent iterations the depth criterion looks at.
	DepthWindow int
	// MinDomains is how many distinct source hosts the authority criterion
	// requires.
	MinDomains int
	// MinConceptKinds is how many distinct concept kinds (other excluded)
	// the coverage criterion requires.
	MinConceptKinds int
}

const (
	defaultMaxIterations     = 5
	defaultMaxWallClock      = 10 * time.Minute
	defaultMinNewSourceRatio = 0.1
	defaultShrinkTolerance   = 0.8
	defaultDepthWindow       = 2
	defaultMinDomains        = 3
	defaultMinConceptKinds   = 3
)

// DefaultConfig returns the baseline tuning for a research run.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     defaultMaxIterations,
		MaxWallClock:      defaultMaxWallClock,
		MinNewSourceRatio: defaultMinNewSourceRatio,
		ShrinkTolerance:   defaultShrinkTolerance,
		DepthWindow:       defaultDepthWindow,
		MinDomains:        defaultMinDomains,
		MinConceptKinds:   defaultMinConceptKinds,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxWallClock <= 0 {
		c.MaxWallClock = d.MaxWallClock
	}
	if c.MinNewSourceRatio <= 0 {
		c.MinNewSourceRatio = d.MinNewSourceRatio
	}
	if c.ShrinkTolerance <= 0 || c.ShrinkTolerance > 1 {
		c.ShrinkTolerance = d.ShrinkTolerance
	}
	if c.DepthWindow <= 0 {
		c.DepthWindow = d.DepthWindow
	}
	if c.MinDomains <= 0 {
		c.MinDomains = d.MinDomains
	}
	if c.MinConceptKinds <= 0 {
		c.MinConceptKinds = d.MinConceptKinds
	}
	return c
}
