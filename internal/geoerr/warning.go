package geoerr

import "errors"

// Warning kinds surfaced in response metadata.
const (
	KindInsufficient = "data_insufficiency"
	KindUpstream     = "upstream_fetch"
	KindComputation  = "computation"
	KindOther        = "other"
)

// Warning is a non-fatal condition attached to a result.
type Warning struct {
	Kind    string `json:"kind"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
}

// WarningFrom classifies err into a Warning.
func WarningFrom(err error) Warning {
	var (
		ie *InsufficientDataError
		ue *UpstreamFetchError
		ce *ComputationError
	)
	switch {
	case errors.As(err, &ue):
		return Warning{Kind: KindUpstream, Source: ue.Source, Message: err.Error()}
	case errors.As(err, &ie):
		return Warning{Kind: KindInsufficient, Source: ie.Operation, Message: err.Error()}
	case errors.As(err, &ce):
		return Warning{Kind: KindComputation, Source: ce.Subject, Message: err.Error()}
	default:
		return Warning{Kind: KindOther, Message: err.Error()}
	}
}

// Skipped is a convenience for the common "skip this item" warning.
func Skipped(subject, id, reason string) Warning {
	return WarningFrom(&ComputationError{Subject: subject, ID: id, Reason: reason})
}
