package radio

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const DEFAULT_STACK_POLL = 1 * time.Second

// interfaceState reports whether the interface is up and its addresses.
type interfaceState func(name string) (bool, []net.Addr, error)

func hostInterfaceState(name string) (bool, []net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false, nil, err
	}
	up := iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0
	addrs, err := iface.Addrs()
	if err != nil {
		return up, nil, err
	}
	return up, addrs, nil
}

// HostStack watches a host network interface.
type HostStack struct {
	iface  string
	poll   time.Duration
	state  interfaceState
	logger *zap.Logger
}

func NewHostStack(iface string, logger *zap.Logger) *HostStack {
	return &HostStack{
		iface:  iface,
		poll:   DEFAULT_STACK_POLL,
		state:  hostInterfaceState,
		logger: logger.With(zap.String("interface", iface)),
	}
}

func (s *HostStack) IsLinkUp() bool {
	up, _, err := s.state(s.iface)
	return err == nil && up
}

func (s *HostStack) IPv4() (netip.Prefix, bool) {
	_, addrs, err := s.state(s.iface)
	if err != nil {
		return netip.Prefix{}, false
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP.To4())
		if !ok {
			continue
		}
		ones, bits := ipNet.Mask.Size()
		if bits == 8*net.IPv6len {
			ones -= 96
		}
		return netip.PrefixFrom(ip, ones), true
	}
	return netip.Prefix{}, false
}

// Run logs link transitions until ctx is done.
func (s *HostStack) Run(ctx context.Context) error {
	if _, _, err := s.state(s.iface); err != nil {
		return fmt.Errorf("interface %s: %w", s.iface, err)
	}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	linkUp := false
	for {
		if up := s.IsLinkUp(); up != linkUp {
			linkUp = up
			prefix, _ := s.IPv4()
			s.logger.Info("stack link changed", zap.Bool("up", up), zap.String("ipv4", prefix.String()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ port.Stack = (*HostStack)(nil)
