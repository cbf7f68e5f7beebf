package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	results []DiscoveryResult
}

func (f *fakeAdapter) Announce(ctx context.Context, _ ServiceInfo) error {
	<-ctx.Done()
	return nil
}

func (f *fakeAdapter) Discover(ctx context.Context, _ string) <-chan DiscoveryResult {
	out := make(chan DiscoveryResult, len(f.results))
	for _, r := range f.results {
		out <- r
	}
	close(out)
	return out
}

func TestResolve(t *testing.T) {
	target := ServiceInfo{
		Name:  "ticketshare-abc",
		Addrs: []net.IP{net.ParseIP("192.168.1.20")},
		Port:  4242,
	}

	t.Run("found after a few snapshots", func(t *testing.T) {
		adapter := &fakeAdapter{results: []DiscoveryResult{
			{Services: []ServiceInfo{{Name: "someone-else", Addrs: []net.IP{net.ParseIP("10.0.0.1")}}}},
			{Services: []ServiceInfo{{Name: "ticketshare-abc"}}}, // no address yet
			{Services: []ServiceInfo{target}},
		}}
		got, err := Resolve(context.Background(), adapter, "svc", "ticketshare-abc")
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.20:4242"}, got.Endpoints())
	})

	t.Run("lookup error", func(t *testing.T) {
		boom := errors.New("boom")
		adapter := &fakeAdapter{results: []DiscoveryResult{{Error: boom}}}
		_, err := Resolve(context.Background(), adapter, "svc", "ticketshare-abc")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := Resolve(context.Background(), &fakeAdapter{}, "svc", "ticketshare-abc")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "_ticketshare._udp.local.", ServiceName(DefaultServiceType, DefaultDomain))
}

func TestMDNSAdapter_AnnounceAndResolve(t *testing.T) {
	// Skip mDNS tests in CI environment as they may be unreliable
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}
	Quiet()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &MDNSAdapter{}
	info := ServiceInfo{
		Name:   "ticketshare-test-instance",
		Type:   "_ticketshare-test._udp",
		Domain: DefaultDomain,
		Port:   4242,
	}

	done := make(chan error, 1)
	go func() { done <- adapter.Announce(ctx, info) }()
	time.Sleep(300 * time.Millisecond)

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()
	found, err := Resolve(queryCtx, adapter, ServiceName(info.Type, info.Domain), info.Name)
	if err != nil {
		t.Skipf("mDNS not available in this environment: %v", err)
	}
	assert.Equal(t, info.Port, found.Port)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Service announcement did not complete in time")
	}
}
