package render

import "github.com/logrusorgru/aurora/v4"

// Colorizer threads a color policy through the renderer as an explicit
// value instead of a package-level flag, so nothing here depends on
// process-wide mutable state.
type Colorizer struct {
	enabled bool
}

// NewColorizer builds a Colorizer with the given policy.
func NewColorizer(enabled bool) *Colorizer {
	return &Colorizer{enabled: enabled}
}

func (c *Colorizer) warn(s string) string {
	if c == nil || !c.enabled {
		return s
	}
	return aurora.Yellow(s).String()
}

func (c *Colorizer) ok(s string) string {
	if c == nil || !c.enabled {
		return s
	}
	return aurora.Green(s).String()
}

func (c *Colorizer) bold(s string) string {
	if c == nil || !c.enabled {
		return s
	}
	return aurora.Bold(s).String()
}

func (c *Colorizer) fatal(s string) string {
	if c == nil || !c.enabled {
		return s
	}
	return aurora.Red(s).String()
}
