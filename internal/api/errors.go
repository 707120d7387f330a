package api

import "errors"

// FailureKind classifies mutation/query failures for the caller.
type FailureKind string

const (
	// FailureValidation is a client-side precondition raised before any
	// network call.
	FailureValidation FailureKind = "validation"
	// FailureTransport is a non-2xx response with a detail string.
	FailureTransport FailureKind = "transport"
	// FailureNetwork means the request never completed.
	FailureNetwork FailureKind = "network"
	// FailureBusy means a mutation for the same entity key is already in
	// flight from this client.
	FailureBusy FailureKind = "busy"
)

const genericDetail = "request failed"

// Failure is the single typed error surfaced to callers. Recognized 404s
// (profile, share card) never become a Failure; they are absent values.
type Failure struct {
	Kind   FailureKind
	Status int
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return genericDetail
	}
	return f.Detail
}

func Validation(detail string) *Failure {
	return &Failure{Kind: FailureValidation, Detail: detail}
}

func Transport(status int, detail string) *Failure {
	if detail == "" {
		detail = genericDetail
	}
	return &Failure{Kind: FailureTransport, Status: status, Detail: detail}
}

func Network(err error) *Failure {
	detail := genericDetail
	if err != nil {
		detail = err.Error()
	}
	return &Failure{Kind: FailureNetwork, Detail: detail}
}

func Busy(detail string) *Failure {
	return &Failure{Kind: FailureBusy, Detail: detail}
}

// AsFailure extracts a *Failure from err, wrapping unknown errors as network
// failures so callers always see one shape.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return Network(err)
}

// IsStatus reports whether err is a transport failure with the given status.
func IsStatus(err error, status int) bool {
	f := AsFailure(err)
	return f.Kind == FailureTransport && f.Status == status
}
