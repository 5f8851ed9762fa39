package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/nadzzz/stockline/internal/apperr"
)

// NetworkMessage is the user-facing text for an unreachable backend.
const NetworkMessage = "Network error: Unable to reach the retrieval backend. Please check your internet connection and try again."

// ErrNetworkUnreachable is in the chain of every error Classify remaps.
var ErrNetworkUnreachable = errors.New("retrieval backend unreachable")

// Classify remaps DNS and dial failures to an apperr network error. Any
// other error is returned unchanged.
func Classify(err error) error {
	if err == nil || !IsUnreachable(err) {
		return err
	}
	return apperr.Network(NetworkMessage, fmt.Errorf("%w: %w", ErrNetworkUnreachable, err))
}

// IsUnreachable reports whether err is a name resolution or connection
// failure. Cancellation is never treated as unreachable.
func IsUnreachable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNetworkUnreachable) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
