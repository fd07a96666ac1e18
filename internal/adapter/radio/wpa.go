package radio

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/netsession"
	"github.com/berfenger/kal2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	DEFAULT_POLL            = 1 * time.Second
	DEFAULT_SCAN_WAIT       = 3 * time.Second
	DEFAULT_CONNECT_TIMEOUT = 30 * time.Second

	WPA_STATE_COMPLETED = "COMPLETED"
)

// CommandRunner runs one wpa_cli command and returns its output.
type CommandRunner func(ctx context.Context, args ...string) (string, error)

// WPACli runs wpa_cli against iface.
func WPACli(iface string) CommandRunner {
	return func(ctx context.Context, args ...string) (string, error) {
		out, err := exec.CommandContext(ctx, "wpa_cli", append([]string{"-i", iface}, args...)...).Output()
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// WPARadio drives wpa_supplicant through its control interface.
type WPARadio struct {
	run            CommandRunner
	poll           time.Duration
	scanWait       time.Duration
	connectTimeout time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	network string
	started bool
}

func NewWPARadio(run CommandRunner, logger *zap.Logger) *WPARadio {
	return &WPARadio{
		run:            run,
		poll:           DEFAULT_POLL,
		scanWait:       DEFAULT_SCAN_WAIT,
		connectTimeout: DEFAULT_CONNECT_TIMEOUT,
		logger:         logger.With(zap.String("radio", "wpa")),
	}
}

func (r *WPARadio) IsStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Configure writes creds into the network block, adding it on first use.
// Later calls reuse the same block.
func (r *WPARadio) Configure(ctx context.Context, creds port.Credentials) error {
	id := r.networkId()
	if id == "" {
		added, err := r.command(ctx, "add_network")
		if err != nil {
			return err
		}
		if _, err := strconv.Atoi(added); err != nil {
			return fmt.Errorf("%w: add_network returned %q", netsession.ErrRadio, added)
		}
		id = added
		r.mu.Lock()
		r.network = id
		r.mu.Unlock()
	}
	if _, err := r.command(ctx, "set_network", id, "ssid", strconv.Quote(creds.SSID)); err != nil {
		return err
	}
	if creds.Password == "" {
		_, err := r.command(ctx, "set_network", id, "key_mgmt", "NONE")
		return err
	}
	_, err := r.command(ctx, "set_network", id, "psk", strconv.Quote(creds.Password))
	return err
}

func (r *WPARadio) Start(ctx context.Context) error {
	if _, err := r.command(ctx, "ping"); err != nil {
		return err
	}
	network := r.networkId()
	if network == "" {
		return fmt.Errorf("%w: not configured", netsession.ErrRadio)
	}
	if _, err := r.command(ctx, "enable_network", network); err != nil {
		return err
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *WPARadio) Scan(ctx context.Context, maxResults int) ([]domain.AccessPoint, error) {
	if _, err := r.command(ctx, "scan"); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.scanWait):
	}
	out, err := r.command(ctx, "scan_results")
	if err != nil {
		return nil, err
	}
	aps := parseScanResults(out)
	if maxResults > 0 && len(aps) > maxResults {
		aps = aps[:maxResults]
	}
	return aps, nil
}

func (r *WPARadio) Connect(ctx context.Context) error {
	network := r.networkId()
	if network == "" {
		return fmt.Errorf("%w: not configured", netsession.ErrRadio)
	}
	if _, err := r.command(ctx, "select_network", network); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()
	err := r.pollState(ctx, func(state string) bool { return state == WPA_STATE_COMPLETED })
	if err != nil {
		return fmt.Errorf("%w: association: %w", netsession.ErrRadio, err)
	}
	return nil
}

func (r *WPARadio) WaitForDisconnect(ctx context.Context) error {
	return r.pollState(ctx, func(state string) bool { return state != WPA_STATE_COMPLETED })
}

func (r *WPARadio) pollState(ctx context.Context, done func(state string) bool) error {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		out, err := r.command(ctx, "status")
		if err == nil {
			state := parseStatus(out)["wpa_state"]
			if done(state) {
				r.logger.Debug("wpa state", zap.String("state", state))
				return nil
			}
		} else if ctx.Err() == nil {
			r.logger.Warn("wpa status failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *WPARadio) networkId() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.network
}

func (r *WPARadio) command(ctx context.Context, args ...string) (string, error) {
	out, err := r.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("%w: wpa_cli %s: %w", netsession.ErrRadio, args[0], err)
	}
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "FAIL") {
		return "", fmt.Errorf("%w: wpa_cli %s: %s", netsession.ErrRadio, args[0], out)
	}
	return out, nil
}

// parseScanResults reads "bssid / frequency / signal level / flags / ssid" rows.
func parseScanResults(out string) []domain.AccessPoint {
	var aps []domain.AccessPoint
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 4 {
			continue
		}
		signal, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		ap := domain.AccessPoint{BSSID: fields[0], Signal: signal}
		if len(fields) > 4 {
			ap.SSID = fields[4]
		}
		aps = append(aps, ap)
	}
	return aps
}

func parseStatus(out string) map[string]string {
	status := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
			status[k] = v
		}
	}
	return status
}

var _ port.Radio = (*WPARadio)(nil)
