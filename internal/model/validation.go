package model

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError marks caller-facing failures: bad vocabulary, missing
// required fields, invalid state transitions. Callers can branch on it with
// errors.As; everything else that escapes job processing is classified into
// JobErrorCode and drives the retry/dead-letter decision instead.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateRegion checks the origin-region controlled vocabulary.
func ValidateRegion(region string) error {
	if !RegionVocabulary[region] {
		return Invalid("invalid region vocabulary value: %s", region)
	}
	return nil
}

// ValidateTraditions requires at least one tag, all from the controlled set.
func ValidateTraditions(traditions []string) error {
	if len(traditions) == 0 {
		return Invalid("at least one tradition tag is required")
	}
	for _, t := range traditions {
		if !TraditionVocabulary[t] {
			return Invalid("invalid tradition vocabulary value: %s", t)
		}
	}
	return nil
}

// ValidateConfidence checks a [0,1] score.
func ValidateConfidence(score float64, field string) error {
	if score < 0.0 || score > 1.0 {
		return Invalid("%s must be between 0.0 and 1.0", field)
	}
	return nil
}

// ValidateRelationType checks the commonality relation vocabulary.
func ValidateRelationType(value string) error {
	if !RelationTypes[value] {
		return Invalid("invalid relation type: %s", value)
	}
	return nil
}

// ValidateFlagType checks the flag taxonomy.
func ValidateFlagType(value string) error {
	if !FlagTypes[value] {
		return Invalid("invalid flag type: %s", value)
	}
	return nil
}

// ValidateReviewInput enforces that reject/needs_revision decisions carry
// non-empty notes. Approvals may omit notes.
func ValidateReviewInput(decision ReviewDecision, notes string) error {
	switch decision {
	case DecisionApprove:
		return nil
	case DecisionReject, DecisionNeedsRevision:
		if strings.TrimSpace(notes) == "" {
			return Invalid("notes are required for reject/needs_revision")
		}
		return nil
	default:
		return Invalid("unsupported review decision: %s", decision)
	}
}
