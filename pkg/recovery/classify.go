// Package recovery classifies failures into the apperror taxonomy and runs
// bounded, per-category recovery before a caller decides to retry.
package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
)

// Classify maps err into the closed error taxonomy. Categorized errors pass
// through unchanged; nil yields nil.
func Classify(err error) *apperror.Error {
	if err == nil {
		return nil
	}

	if appErr, ok := apperror.As(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return apperror.Wrap(apperror.KindCancelled, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return apperror.Wrap(apperror.KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperror.Wrap(apperror.KindTimeout, err)
	}

	if isUnreachable(err) {
		return apperror.Wrap(apperror.KindNoConnection, err)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return apperror.Wrap(apperror.KindInvalidResponse, err)
	}

	var (
		syntaxErr      *json.SyntaxError
		unmarshalErr   *json.UnmarshalTypeError
		unsupportedErr *json.UnsupportedTypeError
		unsupportedVal *json.UnsupportedValueError
		marshalerErr   *json.MarshalerError
	)
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &unmarshalErr):
		return apperror.Wrap(apperror.KindParsingFailed, err)
	case errors.As(err, &unsupportedErr), errors.As(err, &unsupportedVal), errors.As(err, &marshalerErr):
		return apperror.Wrap(apperror.KindEncodingFailed, err)
	}

	var (
		urlErr *url.Error
		opErr  *net.OpError
	)
	if errors.As(err, &opErr) && opErr.Err != nil {
		return apperror.RequestFailed(opErr.Err.Error(), err)
	}
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return apperror.RequestFailed(urlErr.Err.Error(), err)
	}

	return apperror.Wrap(apperror.KindUnknown, err)
}

// isUnreachable reports DNS failures, refused connections and unreachable
// hosts or networks.
func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ENETDOWN,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
