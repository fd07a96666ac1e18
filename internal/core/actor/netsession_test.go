package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRadio struct {
	mu           sync.Mutex
	started      bool
	creds        port.Credentials
	scans        int
	scanMax      int
	connects     int
	failConnects int
	accessPoints []domain.AccessPoint
	disconnect   chan struct{}
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{disconnect: make(chan struct{}, 1)}
}

func (r *fakeRadio) IsStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *fakeRadio) Configure(_ context.Context, creds port.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds = creds
	return nil
}

func (r *fakeRadio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *fakeRadio) Scan(ctx context.Context, maxResults int) ([]domain.AccessPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans++
	r.scanMax = maxResults
	return r.accessPoints, nil
}

func (r *fakeRadio) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
	if r.connects <= r.failConnects {
		return errHardware
	}
	return nil
}

func (r *fakeRadio) WaitForDisconnect(ctx context.Context) error {
	select {
	case <-r.disconnect:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeRadio) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans, r.connects
}

func spawnNetwork(t *testing.T, config NetworkConfig, radio *fakeRadio) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewNetworkActor(config, radio, zap.NewNop())
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_NETWORK)
	require.NoError(t, err)
	return as, pid
}

func linkStateOf(as *actor.ActorSystem, pid *actor.PID) string {
	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	if err != nil {
		return ""
	}
	return res.(domain.ActorHealthResponse).State
}

func TestNetworkConnectsWithoutSsidInScan(t *testing.T) {
	radio := newFakeRadio()
	radio.accessPoints = []domain.AccessPoint{{SSID: "neighbour", BSSID: "aa:bb:cc:dd:ee:ff", Signal: -70}}
	as, pid := spawnNetwork(t, NetworkConfig{Credentials: port.Credentials{SSID: "home", Password: "secret"}}, radio)

	assert.Eventually(t, func() bool {
		return linkStateOf(as, pid) == domain.LinkConnected.String()
	}, time.Second, 10*time.Millisecond)

	scans, connects := radio.counts()
	assert.Equal(t, 1, scans)
	assert.Equal(t, 1, connects)
	radio.mu.Lock()
	defer radio.mu.Unlock()
	assert.Equal(t, DEFAULT_SCAN_MAX, radio.scanMax)
	assert.Equal(t, "home", radio.creds.SSID)
}

func TestNetworkRetriesAfterConnectFailure(t *testing.T) {
	radio := newFakeRadio()
	radio.failConnects = 2
	as, pid := spawnNetwork(t, NetworkConfig{Backoff: 20 * time.Millisecond}, radio)

	assert.Eventually(t, func() bool {
		return linkStateOf(as, pid) == domain.LinkConnected.String()
	}, 2*time.Second, 10*time.Millisecond)

	scans, connects := radio.counts()
	assert.Equal(t, 3, connects)
	assert.Equal(t, 3, scans, "every retry goes through starting and scanning again")
}

func TestNetworkBacksOffBeforeRetry(t *testing.T) {
	radio := newFakeRadio()
	radio.failConnects = 1
	as, pid := spawnNetwork(t, NetworkConfig{Backoff: time.Hour}, radio)

	assert.Eventually(t, func() bool {
		return linkStateOf(as, pid) == domain.LinkDown.String()
	}, time.Second, 10*time.Millisecond)

	_, connects := radio.counts()
	assert.Equal(t, 1, connects)
}

func TestNetworkReconnectsAfterDisconnect(t *testing.T) {
	radio := newFakeRadio()
	as, pid := spawnNetwork(t, NetworkConfig{ReconnectDelay: 20 * time.Millisecond}, radio)

	assert.Eventually(t, func() bool {
		return linkStateOf(as, pid) == domain.LinkConnected.String()
	}, time.Second, 10*time.Millisecond)

	radio.disconnect <- struct{}{}

	assert.Eventually(t, func() bool {
		_, connects := radio.counts()
		return connects == 2 && linkStateOf(as, pid) == domain.LinkConnected.String()
	}, time.Second, 10*time.Millisecond)
}
