// Package daemon serves a running pipeline over a Unix domain socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/modoterra/droidsym/pkg/core"
	"github.com/modoterra/droidsym/pkg/transport/uds"
)

// DefaultStatsInterval is how often changed counters are pushed to clients.
const DefaultStatsInterval = time.Second

// Stream is a pipeline run the daemon hosts.
type Stream interface {
	Run(ctx context.Context, r io.Reader) error
	Resolve(addr string) (string, error)
	Stats() core.Stats
}

// Daemon hosts one Stream and publishes its output to socket clients.
type Daemon struct {
	server        *uds.Server
	pkg           string
	stream        Stream
	mu            sync.RWMutex
	statsInterval time.Duration
	notify        func(state string) error
	logger        *slog.Logger
}

// New creates a daemon listening on socketPath once served.
func New(socketPath, pkg string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		server:        uds.NewServer(socketPath, logger),
		pkg:           pkg,
		statsInterval: DefaultStatsInterval,
		notify:        sdNotify,
		logger:        logger,
	}
	d.registerHandlers()
	return d
}

// Ready is closed once the socket accepts connections.
func (d *Daemon) Ready() <-chan struct{} {
	return d.server.Ready()
}

// Sink returns a sink that pushes every output to connected clients as a
// logs.line event. It never fails; slow clients are dropped instead.
func (d *Daemon) Sink() core.Sink {
	return core.SinkFunc(func(out core.Output) error {
		evt, err := uds.NewEvent(uds.EventLogsLine, out)
		if err != nil {
			return err
		}
		d.server.Broadcast(evt)
		return nil
	})
}

// Serve runs s over r while serving the socket. It returns when the stream
// ends or ctx is cancelled, after the socket has been removed.
func (d *Daemon) Serve(ctx context.Context, s Stream, r io.Reader) error {
	d.mu.Lock()
	d.stream = s
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer d.server.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.Start(gctx)
	})
	g.Go(func() error {
		NewStatsLoop(d, d.statsInterval, d.logger).Run(gctx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		select {
		case <-d.server.Ready():
			d.notifyState(sddaemon.SdNotifyReady)
		case <-gctx.Done():
			// Run still has to drain so the resolver is shut down.
		}
		err := s.Run(gctx, r)
		d.publishStats(s.Stats())
		d.notifyState(sddaemon.SdNotifyStopping)
		return err
	})
	return g.Wait()
}

func (d *Daemon) notifyState(state string) {
	if err := d.notify(state); err != nil {
		d.logger.Warn("sd_notify failed", "err", err)
	}
}

func sdNotify(state string) error {
	_, err := sddaemon.SdNotify(false, state)
	return err
}

func (d *Daemon) current() (Stream, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stream == nil {
		return nil, errors.New("no stream is being served")
	}
	return d.stream, nil
}

func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.MethodPing, d.handlePing)
	d.server.Handle(uds.MethodStatus, d.handleStatus)
	d.server.Handle(uds.MethodResolve, d.handleResolve)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true, Package: d.pkg}, nil
}

func (d *Daemon) handleStatus(_ context.Context, _ uds.Message) (any, error) {
	s, err := d.current()
	if err != nil {
		return nil, err
	}
	return s.Stats(), nil
}

func (d *Daemon) handleResolve(_ context.Context, msg uds.Message) (any, error) {
	var req uds.ResolveRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	addr := strings.TrimSpace(req.Address)
	if addr == "" {
		return nil, errors.New("address is required")
	}
	s, err := d.current()
	if err != nil {
		return nil, err
	}
	sym, err := s.Resolve(addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	d.logger.Debug("resolved on request", "address", addr, "symbol", sym)
	return uds.ResolveResponse{Address: addr, Symbol: sym}, nil
}
