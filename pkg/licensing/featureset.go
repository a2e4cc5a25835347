package licensing

import (
	"encoding/json"
	"sort"
	"strings"
)

// FeatureSet is an unordered set of features. The zero value is an empty set.
// Operations never mutate their receiver or arguments.
type FeatureSet struct {
	m map[Feature]struct{}
}

// NewFeatureSet builds a set from the given features.
func NewFeatureSet(features ...Feature) FeatureSet {
	s := FeatureSet{m: make(map[Feature]struct{}, len(features))}
	for _, f := range features {
		s.m[f] = struct{}{}
	}
	return s
}

// Len returns the number of features in the set.
func (s FeatureSet) Len() int {
	return len(s.m)
}

// IsEmpty reports whether the set has no features.
func (s FeatureSet) IsEmpty() bool {
	return len(s.m) == 0
}

// Contains reports whether f is in the set.
func (s FeatureSet) Contains(f Feature) bool {
	_, ok := s.m[f]
	return ok
}

// Clone returns an independent copy.
func (s FeatureSet) Clone() FeatureSet {
	out := FeatureSet{m: make(map[Feature]struct{}, len(s.m))}
	for f := range s.m {
		out.m[f] = struct{}{}
	}
	return out
}

// Union returns s ∪ other.
func (s FeatureSet) Union(other FeatureSet) FeatureSet {
	out := s.Clone()
	for f := range other.m {
		out.m[f] = struct{}{}
	}
	return out
}

// Subtract returns s - other.
func (s FeatureSet) Subtract(other FeatureSet) FeatureSet {
	out := FeatureSet{m: make(map[Feature]struct{}, len(s.m))}
	for f := range s.m {
		if !other.Contains(f) {
			out.m[f] = struct{}{}
		}
	}
	return out
}

// IsSubsetOf reports whether every feature of s is in other.
func (s FeatureSet) IsSubsetOf(other FeatureSet) bool {
	for f := range s.m {
		if !other.Contains(f) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same features.
func (s FeatureSet) Equal(other FeatureSet) bool {
	return s.Len() == other.Len() && s.IsSubsetOf(other)
}

// Sorted returns the features in lexical order.
func (s FeatureSet) Sorted() []Feature {
	out := make([]Feature, 0, len(s.m))
	for f := range s.m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s FeatureSet) String() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, f := range sorted {
		parts[i] = string(f)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the set as a sorted array of feature keys.
func (s FeatureSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of feature keys, rejecting unknown ones.
func (s *FeatureSet) UnmarshalJSON(data []byte) error {
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return err
	}
	*s = NewFeatureSet(features...)
	return nil
}
