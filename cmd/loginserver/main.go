// Command loginserver runs the cluster's login process: the client-facing
// REQ_LOGIN handler, account/ban lookup, and the control-link listener
// shard processes dial into (§4.9). Adapted from the file-transfer
// daemon's daemon/main.go: same flag/config/observability bring-up order,
// re-pointed at server/login instead of the gRPC/REST/QUIC transfer
// surface.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/originfall/core/internal/config"
	"github.com/originfall/core/internal/db"
	"github.com/originfall/core/internal/identity"
	"github.com/originfall/core/internal/observability"
	"github.com/originfall/core/internal/quicutil"
	"github.com/originfall/core/server/login"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to built-in dev config)")
	listenAddr := flag.String("listen-addr", "", "override client-facing listen address")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Role = "login"
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger := observability.NewLogger("originfall-login", "1.0.0", os.Stdout)
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "originfall-login"); err == nil {
		defer shutdown(context.Background())
	} else {
		logger.Warn("tracing disabled: " + err.Error())
	}

	logger.Info("originfall login server starting")

	id, err := identity.LoadKeystore(keystorePathFor(cfg), cfg.KeystorePassphrase)
	if err != nil {
		logger.Fatal(err, "load identity keystore")
	}
	logger.Info("identity loaded, fingerprint " + id.Fingerprint())

	gw, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal(err, "open account database")
	}
	defer gw.Close()

	var ticketKey []byte
	if cfg.KeystorePassphrase != "" {
		ticketKey = []byte(cfg.KeystorePassphrase)
	}

	srv, err := login.New(cfg, gw, logger, metrics, id, ticketKey, verifyPasswordArgon2id)
	if err != nil {
		logger.Fatal(err, "construct login server")
	}

	health.RegisterCheck("database", observability.DatabaseCheck(gw.Ping))
	health.RegisterCheck("reactor", observability.ReactorListenerCheck(cfg.ListenAddr, true))
	health.RegisterCheck("keystore", observability.KeystoreCheck(true))

	certPEM, keyPEM, err := quicutil.GenerateSelfSignedCert()
	if err != nil {
		logger.Fatal(err, "generate shard-link certificate")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.ListenShards(ctx, cfg.LoginShardListenAddr, certPEM, keyPEM); err != nil {
			logger.Error(err, "shard control listener stopped")
		}
	}()

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
		if err := srv.Run(); err != nil {
			logger.Error(err, "reactor poll failed")
			time.Sleep(time.Second)
		}
	}
}

func keystorePathFor(cfg *config.Config) string {
	path := cfg.KeystorePath
	if path == "" {
		path = identity.DefaultKeystorePath("login")
	}
	if cfg.KeystorePassphrase == "" {
		path += ".insecure"
	}
	return path
}

// verifyPasswordArgon2id is the default PasswordVerifier wired into
// server/login.New. §1 places the account credential-check algorithm out
// of scope, so this exists only so the process has something concrete to
// run. It uses the same Argon2id parameters as internal/identity's
// keystore (time 3, 64 MiB, 4 threads) with its own stored format: salt
// and derived key hex-encoded and joined by "$".
func verifyPasswordArgon2id(storedHash, password string) bool {
	parts := strings.SplitN(storedHash, "$", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, 3, 65536, 4, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
