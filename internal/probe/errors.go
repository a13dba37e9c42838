package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a transport failure
type Kind string

const (
	KindNetwork       Kind = "NETWORK"
	KindHTTPStatus    Kind = "HTTP_STATUS"
	KindTimeout       Kind = "TIMEOUT"
	KindMalformedBody Kind = "MALFORMED_BODY"
)

// TransportError is the only error type Fetch returns
type TransportError struct {
	Kind Kind
	Code int // HTTP status when Kind is HTTP_STATUS
	URL  string
	Err  error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%s(%d) %s", e.Kind, e.Code, e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %v", e.Kind, e.URL, e.Err)
		}
		return fmt.Sprintf("%s %s", e.Kind, e.URL)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Short is the compact form used in resolution traces
func (e *TransportError) Short() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("HTTP_STATUS(%d)", e.Code)
	}
	return string(e.Kind)
}

// KindOf returns the transport kind of err, or "" when err is not a TransportError
func KindOf(err error) Kind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// Describe renders err for a trace entry
func Describe(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Short()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func classify(rawURL string, err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &TransportError{Kind: KindNetwork, URL: rawURL, Err: err}
}
