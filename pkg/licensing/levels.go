package licensing

import (
	"fmt"
	"strings"
)

// UserLevel is an ordinal tier used to force eligibility for special builds.
// Ordering: undefined < freemium < beta < essentials < complete.
type UserLevel int

const (
	LevelUndefined UserLevel = iota
	LevelFreemium
	LevelBeta
	LevelEssentials
	LevelComplete
)

// ParseUserLevel converts a configuration value into a UserLevel.
// An empty string yields LevelUndefined.
func ParseUserLevel(raw string) (UserLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "undefined", "none":
		return LevelUndefined, nil
	case "freemium", "free":
		return LevelFreemium, nil
	case "beta":
		return LevelBeta, nil
	case "essentials":
		return LevelEssentials, nil
	case "complete", "full":
		return LevelComplete, nil
	default:
		return LevelUndefined, fmt.Errorf("%w: %q", ErrUnknownUserLevel, raw)
	}
}

// Features returns the features the level grants on its own.
func (l UserLevel) Features() FeatureSet {
	switch l {
	case LevelBeta, LevelEssentials:
		return essentialsFeatures.Clone()
	case LevelComplete:
		return completeFeatures.Clone()
	default:
		return FeatureSet{}
	}
}

// AtLeast reports whether l is at or above other.
func (l UserLevel) AtLeast(other UserLevel) bool {
	return l >= other
}

func (l UserLevel) String() string {
	switch l {
	case LevelUndefined:
		return "undefined"
	case LevelFreemium:
		return "freemium"
	case LevelBeta:
		return "beta"
	case LevelEssentials:
		return "essentials"
	case LevelComplete:
		return "complete"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}
