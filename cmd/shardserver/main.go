// Command shardserver runs one shard process: the client-facing game
// reactor, the entity map, persistence, the tick scheduler, and the
// control link dialed out to the login server (§4). Adapted from the
// file-transfer daemon's daemon/main.go bring-up order, re-pointed at
// server/shard instead of the gRPC/REST/QUIC transfer surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/originfall/core/internal/config"
	"github.com/originfall/core/internal/db"
	"github.com/originfall/core/internal/gametables"
	"github.com/originfall/core/internal/identity"
	"github.com/originfall/core/internal/loginshard"
	"github.com/originfall/core/internal/observability"
	"github.com/originfall/core/server/shard"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to built-in dev config)")
	listenAddr := flag.String("listen-addr", "", "override client-facing listen address")
	shardID := flag.String("shard-id", "", "override this shard's id")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Role = "shard"
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *shardID != "" {
		cfg.ShardID = *shardID
	}

	logger := observability.NewLogger("originfall-shard", "1.0.0", os.Stdout).WithShard(cfg.ShardID)
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "originfall-shard"); err == nil {
		defer shutdown(context.Background())
	} else {
		logger.Warn("tracing disabled: " + err.Error())
	}

	logger.Info("originfall shard server starting")

	id, err := identity.LoadKeystore(keystorePathFor(cfg), cfg.KeystorePassphrase)
	if err != nil {
		logger.Fatal(err, "load identity keystore")
	}
	logger.Info("identity loaded, fingerprint " + id.Fingerprint())

	gw, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal(err, "open player database")
	}
	defer gw.Close()

	saveQueue, err := db.OpenSaveQueue(cfg.DatabaseDSN + ".savequeue")
	if err != nil {
		logger.Fatal(err, "open pending-save queue")
	}
	defer saveQueue.Close()

	tables, err := gametables.Load(cfg.GameTablesDSN)
	if err != nil {
		logger.Fatal(err, "load game tables")
	}
	defer tables.Close()

	var ticketKey []byte
	if cfg.KeystorePassphrase != "" {
		ticketKey = []byte(cfg.KeystorePassphrase)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loginLink, err := dialLoginWithRetry(ctx, cfg, id, ticketKey, logger)
	if err != nil {
		logger.Fatal(err, "dial login server")
	}
	defer loginLink.Close()

	srv, err := shard.New(cfg, gw, saveQueue, logger, metrics, loginLink)
	if err != nil {
		logger.Fatal(err, "construct shard server")
	}

	health.RegisterCheck("database", observability.DatabaseCheck(gw.Ping))
	health.RegisterCheck("reactor", observability.ReactorListenerCheck(cfg.ListenAddr, true))
	health.RegisterCheck("keystore", observability.KeystoreCheck(true))
	health.RegisterCheck("login_link", observability.LoginShardLinkCheck(true))

	go readLoginLink(ctx, loginLink, srv, logger, metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", health.Handler())
	obsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := obsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "observability server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = obsSrv.Shutdown(context.Background())
	}()

	logger.Info("listening for clients on " + cfg.ListenAddr)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		now := time.Now()
		if err := srv.Run(now); err != nil {
			logger.Error(err, "reactor poll failed")
			time.Sleep(time.Second)
		}
	}
}

func keystorePathFor(cfg *config.Config) string {
	path := cfg.KeystorePath
	if path == "" {
		path = identity.DefaultKeystorePath(cfg.ShardID)
	}
	if cfg.KeystorePassphrase == "" {
		path += ".insecure"
	}
	return path
}

// dialLoginWithRetry keeps retrying the control-link dial until ctx is
// canceled, since a shard starting before its login server is up is a
// normal deployment race rather than a fatal condition.
func dialLoginWithRetry(ctx context.Context, cfg *config.Config, id *identity.KeyPair, ticketKey []byte, logger *observability.Logger) (*loginshard.Link, error) {
	for {
		link, err := loginshard.DialShard(ctx, cfg.LoginShardDialAddr, cfg.ShardID, id, ticketKey)
		if err == nil {
			logger.LoginShardLinkEstablished(cfg.ShardID, cfg.LoginShardDialAddr)
			return link, nil
		}
		logger.LoginShardLinkFailed(cfg.ShardID, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// readLoginLink drains tickets the login server stages ahead of a
// client's connection (§4.9 step 2) until the link closes or ctx ends.
func readLoginLink(ctx context.Context, link *loginshard.Link, srv *shard.Server, logger *observability.Logger, metrics *observability.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, err := link.Recv()
		if err != nil {
			logger.LoginShardLinkFailed("", err)
			return
		}
		if metrics != nil {
			metrics.RecordLoginShardFrame("from_login")
		}
		if msg.LoginData != nil {
			srv.IngestLoginData(*msg.LoginData)
		}
	}
}
