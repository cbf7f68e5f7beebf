package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/rescp17/ticketShare/pkg/concurrency"
	"github.com/rescp17/ticketShare/pkg/crypto"
	"github.com/rescp17/ticketShare/pkg/discovery"
	"github.com/rescp17/ticketShare/pkg/fileInfo"
	"github.com/rescp17/ticketShare/pkg/transfer"
	"golang.org/x/sync/errgroup"
)

type Option func(*QUICEngine)

// WithDiscovery announces shares and resolves ticket nodes over the given adapter.
func WithDiscovery(adapter discovery.Adapter) Option {
	return func(e *QUICEngine) {
		e.discovery = adapter
	}
}

// WithHosts overrides the addresses written into tickets.
func WithHosts(hosts ...string) Option {
	return func(e *QUICEngine) {
		e.hosts = hosts
	}
}

// QUICEngine shares files over QUIC. Each share gets its own listener and a
// throwaway certificate whose fingerprint is pinned by the ticket.
type QUICEngine struct {
	cfg        *transfer.TransferConfig
	discovery  discovery.Adapter
	serializer transfer.MessageSerializer
	hosts      []string

	mu    sync.Mutex
	epoch uint64
	share *activeShare
}

type activeShare struct {
	node     fileInfo.FileNode
	token    string
	ticket   Ticket
	listener *quic.Listener
	guard    *concurrency.ConcurrencyGuard
	progress chan<- transfer.Progress

	cancel context.CancelFunc
	done   chan struct{}
}

var _ Engine = (*QUICEngine)(nil)

func NewQUICEngine(cfg *transfer.TransferConfig, opts ...Option) (*QUICEngine, error) {
	if cfg == nil {
		cfg = transfer.DefaultTransferConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}
	e := &QUICEngine{
		cfg:        cfg,
		serializer: transfer.NewJSONSerializer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *QUICEngine) quicConfig() *quic.Config {
	return &quic.Config{
		HandshakeIdleTimeout: e.cfg.DialTimeout,
		MaxIdleTimeout:       e.cfg.IdleTimeout,
		KeepAlivePeriod:      e.cfg.IdleTimeout / 3,
	}
}

// BeginSend starts sharing path and returns the ticket for it. A previous share is replaced.
func (e *QUICEngine) BeginSend(ctx context.Context, path string, progress chan<- transfer.Progress) (string, error) {
	const op = "begin_send"

	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	node, err := fileInfo.CreateNode(path)
	if err != nil {
		return "", wrapOp(op, err)
	}
	if node.IsDir {
		return "", wrapOp(op, fmt.Errorf("%w: %s is a directory", ErrNotAFile, node.Path))
	}
	if err := ctx.Err(); err != nil {
		return "", wrapOp(op, err)
	}

	keyPair, err := crypto.GenerateKeyPair(crypto.DefaultKeyBits)
	if err != nil {
		return "", wrapOp(op, err)
	}
	hosts := e.advertiseHosts()
	cert, err := crypto.NewSelfSignedCertificate(keyPair, hosts)
	if err != nil {
		return "", wrapOp(op, err)
	}

	listener, err := quic.ListenAddr(fmt.Sprintf(":%d", e.cfg.ListenPort), crypto.ServerTLSConfig(cert, transfer.ALPN), e.quicConfig())
	if err != nil {
		return "", wrapOp(op, fmt.Errorf("listen: %w", err))
	}
	port := listener.Addr().(*net.UDPAddr).Port

	ticket := Ticket{
		Version:     ticketVersion,
		Node:        "ticketshare-" + uuid.NewString()[:8],
		Fingerprint: crypto.Fingerprint(cert.Certificate[0]),
		Token:       uuid.NewString(),
		Name:        node.Name,
		Size:        node.Size,
		Checksum:    node.Checksum,
	}
	for _, h := range hosts {
		ticket.Addrs = append(ticket.Addrs, net.JoinHostPort(h, strconv.Itoa(port)))
	}
	text, err := ticket.Encode()
	if err != nil {
		_ = listener.Close()
		return "", wrapOp(op, err)
	}

	shareCtx, cancel := context.WithCancel(context.Background())
	share := &activeShare{
		node:     node,
		token:    ticket.Token,
		ticket:   ticket,
		listener: listener,
		guard:    concurrency.NewConcurrencyGuard(),
		progress: progress,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		cancel()
		_ = listener.Close()
		return "", wrapOp(op, ErrShutdown)
	}
	previous := e.share
	e.share = share
	e.mu.Unlock()

	if previous != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
		if err := previous.stop(stopCtx); err != nil {
			slog.Warn("failed to stop previous share", "error", err)
		}
		stopCancel()
	}

	e.run(shareCtx, share, port)
	slog.Info("sharing file", "name", node.Name, "size", node.Size, "port", port, "node", ticket.Node)
	return text, nil
}

func (e *QUICEngine) run(ctx context.Context, share *activeShare, port int) {
	var g errgroup.Group
	g.Go(func() error {
		e.serve(ctx, share)
		return nil
	})
	if e.discovery != nil {
		g.Go(func() error {
			err := e.discovery.Announce(ctx, discovery.ServiceInfo{
				Name:   share.ticket.Node,
				Type:   discovery.DefaultServiceType,
				Domain: discovery.DefaultDomain,
				Port:   port,
				Text:   map[string]string{"name": share.node.Name},
			})
			if err != nil {
				slog.Warn("mDNS announcement failed", "error", err)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(share.done)
	}()
}

// Shutdown stops the current share. It is safe to call when nothing is shared.
func (e *QUICEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.epoch++
	share := e.share
	e.share = nil
	e.mu.Unlock()

	if share == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer cancel()
	if err := share.stop(ctx); err != nil {
		return wrapOp("shutdown", err)
	}
	slog.Info("share stopped", "name", share.node.Name)
	return nil
}

func (s *activeShare) stop(ctx context.Context) error {
	s.cancel()
	closeErr := s.listener.Close()
	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for transfers to stop: %w", ctx.Err())
	}
	if closeErr != nil && !errors.Is(closeErr, quic.ErrServerClosed) {
		return closeErr
	}
	return nil
}

// advertiseHosts lists the addresses a receiver may reach this machine on.
// LAN IPv4 comes first and loopback last.
func (e *QUICEngine) advertiseHosts() []string {
	if len(e.hosts) > 0 {
		return e.hosts
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		slog.Warn("failed to list interface addresses", "error", err)
		return []string{"127.0.0.1"}
	}

	var v4, v6 []string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() || !ipNet.IP.IsGlobalUnicast() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			v4 = append(v4, ip4.String())
		} else {
			v6 = append(v6, ipNet.IP.String())
		}
	}
	return append(append(v4, v6...), "127.0.0.1")
}
