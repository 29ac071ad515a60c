// Command vulnserver runs the line-reversing fuzzing target on a loopback
// port.
//
//	vulnserver [flags] <port>
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/vulnserver/config"
	"github.com/cyberinferno/vulnserver/logger"
	"github.com/cyberinferno/vulnserver/memory"
	"github.com/cyberinferno/vulnserver/peerstats"
	"github.com/cyberinferno/vulnserver/session"
	"github.com/cyberinferno/vulnserver/tcpserver"
)

const serviceName = "vulnserver"

func main() {
	if err := run(os.Args); err != nil {
		if !errors.Is(err, config.ErrUsage) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(filepath.Base(args[0]), args[1:], os.Stderr)
	if err != nil {
		return err
	}

	log := logger.NewZerologLogger(os.Stdout, serviceName, uuid.NewString(), cfg.Level)

	peerLog, err := logger.OpenPeerLog(cfg.LogFile)
	if err != nil {
		log.Error("startup failed", logger.Field{Key: "error", Value: err})
		return err
	}
	defer peerLog.Close()

	stats, closeStats, err := newTracker(cfg)
	if err != nil {
		log.Error("startup failed", logger.Field{Key: "error", Value: err})
		return err
	}
	defer closeStats()

	if cfg.ResetStats {
		if err := resetStats(stats); err != nil {
			log.Error("startup failed", logger.Field{Key: "error", Value: err})
			return err
		}
		log.Info("peer stats reset")
	}

	frame := memory.NewFrame(cfg.Sanitize)
	for _, slot := range memory.Layout() {
		log.Debug("frame slot",
			logger.Field{Key: "slot", Value: slot.Name},
			logger.Field{Key: "addr", Value: fmt.Sprintf("0x%08x", slot.Addr())},
			logger.Field{Key: "size", Value: slot.Size})
	}

	opts := []session.Option{session.WithMode(cfg.SessionMode)}
	if cfg.LogLines {
		opts = append(opts, session.WithPeerLog(peerLog))
	}

	server := &tcpserver.TCPServer{
		Logger:  log,
		Name:    serviceName,
		Addr:    cfg.Addr(),
		Backlog: tcpserver.DefaultBacklog,
		Stats:   stats,
	}
	server.NewSession = newSessionFunc(log, frame, opts)

	if err := server.Start(); err != nil {
		return err
	}

	log.Info("target configured",
		logger.Field{Key: "mode", Value: cfg.SessionMode.String()},
		logger.Field{Key: "sanitize", Value: frame.Sanitized()},
		logger.Field{Key: "log_file", Value: peerLog.Path()},
		logger.Field{Key: "log_lines", Value: cfg.LogLines},
		logger.Field{Key: "log_level", Value: log.Level().String()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	release := func() error {
		closeStats()
		if err := peerLog.Close(); err != nil {
			return fmt.Errorf("close peer log: %w", err)
		}
		return nil
	}

	if err := serve(ctx, server, release); err != nil {
		log.Error("server stopped", logger.Field{Key: "error", Value: err})
		return err
	}

	frame.Return()
	return nil
}

// serve runs the accept loop until ctx is done or the server fails, then
// calls release once the loop has been told to stop.
func serve(ctx context.Context, server *tcpserver.TCPServer, release func() error) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	g.Go(func() error {
		defer cancel()
		return server.Serve(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return release()
	})

	return g.Wait()
}

// newSessionFunc builds sessions on frame whose log entries carry the
// connection number and the peer IP.
func newSessionFunc(log logger.Logger, frame *memory.Frame, opts []session.Option) tcpserver.NewSessionFunc {
	return func(id uint32, conn net.Conn) tcpserver.TCPServerSession {
		sessionLog := log.With(
			logger.Field{Key: "conn", Value: id},
			logger.Field{Key: "peer", Value: tcpserver.RemoteHost(conn)})
		return session.New(id, conn, frame, append(opts[:len(opts):len(opts)], session.WithLogger(sessionLog))...)
	}
}

func resetStats(stats peerstats.Tracker) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := stats.Reset(ctx); err != nil {
		return fmt.Errorf("reset peer stats: %w", err)
	}

	return nil
}

// newTracker returns the peer stats backend selected by cfg and a function
// releasing it. The release function may be called more than once.
func newTracker(cfg config.Config) (peerstats.Tracker, func(), error) {
	if cfg.Redis == "" {
		return peerstats.NewMemoryTracker(cfg.StatsWindow, cfg.StatsWindow), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Redis})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s unreachable: %w", cfg.Redis, err)
	}

	tracker := peerstats.NewRedisTracker(client, peerstats.DefaultRedisPrefix, cfg.StatsWindow)
	return tracker, sync.OnceFunc(func() { _ = client.Close() }), nil
}
