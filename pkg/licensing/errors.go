package licensing

import (
	"errors"
	"fmt"
)

// Licensing errors
var (
	ErrIneligible          = errors.New("feature not unlocked")
	ErrVerificationPending = errors.New("purchase record not loaded yet")
	ErrInconsistentState   = errors.New("full version owner missing features")
	ErrReceiptAbsent       = errors.New("no purchase record loaded")
	ErrUnknownFeature      = errors.New("unknown feature")
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrUnknownUserLevel    = errors.New("unknown user level")
)

// VerificationKind distinguishes a hard denial from a still-loading record.
type VerificationKind string

const (
	VerificationIneligible VerificationKind = "ineligible"
	VerificationPending    VerificationKind = "pending"
)

// VerificationError is returned by the Verify family when required features
// are missing.
type VerificationError struct {
	Kind    VerificationKind
	Missing FeatureSet
}

func (e *VerificationError) Error() string {
	if e.Kind == VerificationPending {
		return fmt.Sprintf("%v: cannot verify %s", ErrVerificationPending, e.Missing)
	}
	return fmt.Sprintf("%v: missing %s", ErrIneligible, e.Missing)
}

// Is matches ErrIneligible or ErrVerificationPending according to Kind.
func (e *VerificationError) Is(target error) bool {
	switch target {
	case ErrIneligible:
		return e.Kind == VerificationIneligible
	case ErrVerificationPending:
		return e.Kind == VerificationPending
	}
	return false
}

// IsPending reports whether the caller should retry once the receipt loads.
func (e *VerificationError) IsPending() bool {
	return e.Kind == VerificationPending
}

// MissingFeatures extracts the missing set from a verification error.
// It returns an empty set for nil or unrelated errors.
func MissingFeatures(err error) FeatureSet {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Missing.Clone()
	}
	return FeatureSet{}
}
