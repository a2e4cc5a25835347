package licensing

// Config holds the static inputs of the engine, fixed for the process lifetime.
type Config struct {
	// Platform is where the engine is running.
	Platform Platform
	// Unrestricted features are granted regardless of purchases (trial/demo builds).
	Unrestricted FeatureSet
	// Grandfather is the historical cutoff table. Nil means no grandfathering;
	// use DefaultGrandfatherRules for the shipped table.
	Grandfather []GrandfatherRule
	// ForcedLevel widens eligibility for QA and beta builds. LevelUndefined disables it.
	ForcedLevel UserLevel
}

// DefaultConfig returns the production configuration for a platform.
func DefaultConfig(platform Platform) Config {
	return Config{
		Platform:    platform,
		Grandfather: DefaultGrandfatherRules(),
	}
}

// clone detaches the config from caller-owned slices and sets.
func (c Config) clone() Config {
	out := c
	out.Unrestricted = c.Unrestricted.Clone()
	if c.Grandfather != nil {
		out.Grandfather = make([]GrandfatherRule, len(c.Grandfather))
		copy(out.Grandfather, c.Grandfather)
	}
	return out
}
