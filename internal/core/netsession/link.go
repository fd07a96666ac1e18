package netsession

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/port"
)

const DEFAULT_LINK_POLL = 500 * time.Millisecond

// ErrRadio is wrapped by radio adapters on controller failures.
var ErrRadio = errors.New("radio error")

// WaitForLink blocks until the interface reports link up and then until it holds
// an IPv4 lease. It returns the leased address.
func WaitForLink(ctx context.Context, stack port.Stack, interval time.Duration) (netip.Prefix, error) {
	if interval <= 0 {
		interval = DEFAULT_LINK_POLL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !stack.IsLinkUp() {
		select {
		case <-ctx.Done():
			return netip.Prefix{}, ctx.Err()
		case <-ticker.C:
		}
	}
	for {
		if addr, ok := stack.IPv4(); ok {
			return addr, nil
		}
		select {
		case <-ctx.Done():
			return netip.Prefix{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
