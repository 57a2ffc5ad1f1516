package types

import (
	"github.com/synapselabs/synapse/errors"
)

// Classification is the ordered sensitivity label attached to a silo.
// The ordering is load-bearing: access checks compare numeric values, so the
// constants must stay in ascending sensitivity order.
type Classification int

const (
	ClassificationPublic Classification = iota
	ClassificationInternal
	ClassificationConfidential
	ClassificationRestricted
)

var classificationNames = map[Classification]string{
	ClassificationPublic:       "public",
	ClassificationInternal:     "internal",
	ClassificationConfidential: "confidential",
	ClassificationRestricted:   "restricted",
}

func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseClassification parses a classification name as stored in configuration
// or silo metadata. Unknown names are an error, not a silent default: defaulting
// to anything would either over- or under-protect the silo.
func ParseClassification(s string) (Classification, error) {
	for level, name := range classificationNames {
		if name == s {
			return level, nil
		}
	}
	return 0, errors.Newf("unknown classification %q", s)
}

// Dominates reports whether a holder of level c may read data classified at
// other. Equal levels dominate.
func (c Classification) Dominates(other Classification) bool {
	return c >= other
}

// Clearance is the security clearance hierarchy, distinct from the general
// classification ladder. A Restricted silo may require a minimum clearance on
// top of the Restricted access level.
type Clearance int

const (
	ClearanceNone Clearance = iota
	ClearanceConfidential
	ClearanceSecret
	ClearanceTopSecret
)

var clearanceNames = map[Clearance]string{
	ClearanceNone:         "none",
	ClearanceConfidential: "confidential",
	ClearanceSecret:       "secret",
	ClearanceTopSecret:    "top_secret",
}

func (c Clearance) String() string {
	if name, ok := clearanceNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseClearance parses a clearance name. The empty string means no clearance.
func ParseClearance(s string) (Clearance, error) {
	if s == "" {
		return ClearanceNone, nil
	}
	for level, name := range clearanceNames {
		if name == s {
			return level, nil
		}
	}
	return 0, errors.Newf("unknown clearance %q", s)
}

// Meets reports whether clearance c satisfies a required minimum.
func (c Clearance) Meets(required Clearance) bool {
	return c >= required
}
