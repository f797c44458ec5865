// Package pagination bounds the page sizes accepted by list endpoints.
package pagination

// PageSizeConfig configures page size normalization. A zero Max leaves sizes
// uncapped.
type PageSizeConfig struct {
	Default int
	Max     int
}

// Clamp returns size with the default applied to non-positive values and the
// result capped at Max. It never returns less than 1.
func (c PageSizeConfig) Clamp(size int) int {
	if size <= 0 {
		size = c.Default
	}
	if c.Max > 0 && size > c.Max {
		size = c.Max
	}
	return max(size, 1)
}

// ClampPageSize is Clamp for callers holding a config value.
func ClampPageSize(size int, cfg PageSizeConfig) int {
	return cfg.Clamp(size)
}
