package sources

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindRateLimited
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return "transport"
	}
}

// FetchError is the typed failure every adapter returns. Detail holds a short
// diagnostic (status, field name, body preview) and is always bounded so a
// misbehaving provider cannot flood the logs.
type FetchError struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Detail   string
	Err      error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (http %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries an explicit throttling signal.
func IsRateLimited(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindRateLimited
}

const maxDetailLen = 160

// preview bounds raw provider text before it lands in an error message.
func preview(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxDetailLen {
		s = s[:maxDetailLen]
	}
	return s
}

func transportErr(provider string, err error) *FetchError {
	return &FetchError{Kind: KindTransport, Provider: provider, Err: err}
}

func statusErr(provider string, status int, body []byte) *FetchError {
	kind := KindTransport
	if status == 429 {
		kind = KindRateLimited
	}
	return &FetchError{Kind: kind, Provider: provider, Status: status, Detail: preview(body)}
}

func malformedErr(provider, detail string) *FetchError {
	return &FetchError{Kind: KindMalformed, Provider: provider, Detail: detail}
}
