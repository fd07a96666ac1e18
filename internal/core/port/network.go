package port

import (
	"context"
	"net/netip"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
)

// Credentials for the wireless client.
type Credentials struct {
	SSID     string
	Password string
}

// Radio is the wireless controller driven by the network session manager.
type Radio interface {
	IsStarted() bool
	Configure(ctx context.Context, creds Credentials) error
	Start(ctx context.Context) error
	Scan(ctx context.Context, maxResults int) ([]domain.AccessPoint, error)
	Connect(ctx context.Context) error
	// WaitForDisconnect blocks until the station is disconnected or ctx is done.
	WaitForDisconnect(ctx context.Context) error
}

// Stack is the network interface used by the transport.
type Stack interface {
	IsLinkUp() bool
	// IPv4 returns the leased address, if any.
	IPv4() (netip.Prefix, bool)
	// Run pumps the interface until ctx is done.
	Run(ctx context.Context) error
}
