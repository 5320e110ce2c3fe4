// Package login wires the login-server process: the client-facing
// reactor handling P_CL2LS_REQ_LOGIN, the persistence gateway's account
// lookup/ban check, and a registry of connected shards reached over
// internal/loginshard control links (§4.9).
//
// Credential verification itself is explicitly out of scope (§1: "the
// login-server credential check" is named as an external collaborator's
// contract) — Server takes a PasswordVerifier function rather than
// implementing one, the same way daemon/manager/verification.go's
// checksum verifier was injected into the teacher's session manager
// rather than hard-coded into it.
package login

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/originfall/core/internal/config"
	"github.com/originfall/core/internal/db"
	"github.com/originfall/core/internal/identity"
	"github.com/originfall/core/internal/loginshard"
	"github.com/originfall/core/internal/observability"
	"github.com/originfall/core/internal/ratelimit"
	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/wire"
)

// PasswordVerifier reports whether password matches storedHash. §1 places
// the actual credential-check algorithm out of scope; production callers
// inject a real one (bcrypt, argon2, whatever the account store uses).
type PasswordVerifier func(storedHash, password string) bool

type shardEntry struct {
	link       *loginshard.Link
	clientAddr string
	population int32
}

// Server owns the login-process state: the client-facing reactor and the
// registry of connected shards. Unlike server/shard.Server, two
// goroutines touch state here — the reactor's own loop, and one
// control-link reader goroutine per shard — so the shard registry alone
// is mutex-guarded; everything reactor-owned still follows §5's
// single-threaded rule.
type Server struct {
	cfg *config.Config

	Reactor *reactor.Reactor
	DB      *db.Gateway
	Pending *loginshard.PendingTable

	Log     *observability.Logger
	Metrics *observability.Metrics

	identity   *identity.KeyPair
	ticketKey  []byte
	verifyPass PasswordVerifier

	listener *loginshard.Listener

	mu     sync.Mutex
	shards map[string]*shardEntry
}

// New wires a login Server. id/ticketKey authenticate the shard control
// link (internal/loginshard); verifyPass is the injected credential
// check §1 places out of scope.
func New(cfg *config.Config, gw *db.Gateway, log *observability.Logger, metrics *observability.Metrics, id *identity.KeyPair, ticketKey []byte, verifyPass PasswordVerifier) (*Server, error) {
	srv := &Server{
		cfg:        cfg,
		DB:         gw,
		Pending:    loginshard.NewPendingTable(),
		Log:        log,
		Metrics:    metrics,
		identity:   id,
		ticketKey:  ticketKey,
		verifyPass: verifyPass,
		shards:     make(map[string]*shardEntry),
	}

	for _, ep := range cfg.ShardEndpoints {
		srv.shards[ep.ShardID] = &shardEntry{clientAddr: ep.ClientAddr}
	}

	r, err := reactor.New(cfg.ListenAddr, cfg.PollTimeout, srv.dispatch, srv.onDisconnect)
	if err != nil {
		return nil, fmt.Errorf("login: start reactor: %w", err)
	}
	srv.Reactor = r

	acceptLimiter := ratelimit.NewTokenBucket(cfg.AcceptRatePerSecond, cfg.AcceptBurst)
	r.SetAcceptGate(func() bool { return acceptLimiter.Allow(1) })

	return srv, nil
}

// Run drives one reactor poll pass; cmd/loginserver loops this until
// shutdown.
func (s *Server) Run() error {
	return s.Reactor.Poll()
}

// ListenShards starts accepting shard control connections and blocks
// until ctx is done or the listener fails; callers run this in its own
// goroutine (§4.9 doc: "the one place in this codebase" blocking I/O
// outside the reactor loop is appropriate).
func (s *Server) ListenShards(ctx context.Context, listenAddr string, certPEM, keyPEM []byte) error {
	ln, err := loginshard.ListenLogin(listenAddr, certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("login: listen shards: %w", err)
	}
	s.listener = ln

	var wg sync.WaitGroup
	for _, ep := range s.cfg.ShardEndpoints {
		wg.Add(1)
		go func(shardID string) {
			defer wg.Done()
			s.acceptShardLoop(ctx, shardID)
		}(ep.ShardID)
	}
	<-ctx.Done()
	_ = ln.Close()
	wg.Wait()
	return nil
}

// acceptShardLoop re-accepts shardID's control connection whenever it
// drops, so a shard restart doesn't require restarting the login
// process.
func (s *Server) acceptShardLoop(ctx context.Context, shardID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		link, err := s.listener.Accept(ctx, shardID, s.identity, s.ticketKey)
		if err != nil {
			if s.Log != nil {
				s.Log.LoginShardLinkFailed(shardID, err)
			}
			time.Sleep(time.Second)
			continue
		}
		if s.Log != nil {
			s.Log.LoginShardLinkEstablished(shardID, "")
		}
		if s.Metrics != nil {
			s.Metrics.SetLoginShardLinkUp(true)
		}

		s.mu.Lock()
		entry, ok := s.shards[shardID]
		if !ok {
			entry = &shardEntry{}
			s.shards[shardID] = entry
		}
		entry.link = link
		s.mu.Unlock()

		s.readShardLoop(shardID, link)

		s.mu.Lock()
		entry.link = nil
		s.mu.Unlock()
		if s.Metrics != nil {
			s.Metrics.SetLoginShardLinkUp(false)
		}
	}
}

// readShardLoop drains UPDATE_PC_SHARD/UPDATE_CHANNEL_STATUSES reports
// off one shard's control link until it closes.
func (s *Server) readShardLoop(shardID string, link *loginshard.Link) {
	for {
		msg, err := link.Recv()
		if err != nil {
			if s.Log != nil {
				s.Log.LoginShardLinkFailed(shardID, err)
			}
			return
		}
		if s.Metrics != nil {
			s.Metrics.RecordLoginShardFrame("from_shard")
		}
		switch {
		case msg.UpdatePCShard != nil:
			s.mu.Lock()
			if entry, ok := s.shards[shardID]; ok {
				if msg.UpdatePCShard.Entered {
					entry.population++
				} else if entry.population > 0 {
					entry.population--
				}
			}
			s.mu.Unlock()
		case msg.ChannelStatuses != nil:
			// Per-channel detail is informational only at the login
			// server; shard selection uses the coarser population
			// counter UPDATE_PC_SHARD already maintains.
		}
	}
}

// pickShard returns the shard id/client address with the lowest
// reported population among currently-connected shards.
func (s *Server) pickShard() (shardID string, clientAddr string, link *loginshard.Link, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.shards))
	for id := range s.shards {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := int32(-1)
	for _, id := range ids {
		entry := s.shards[id]
		if entry.link == nil {
			continue
		}
		if best < 0 || entry.population < best {
			best = entry.population
			shardID, clientAddr, link, ok = id, entry.clientAddr, entry.link, true
		}
	}
	return
}

func (s *Server) dispatch(sess *reactor.Session, frame wire.Frame) error {
	switch frame.ID {
	case wire.PCL2LSReqLogin:
		return s.handleReqLogin(sess, frame.Payload)
	default:
		return reactor.Warn("login: session %d sent unhandled packet id %d", sess.Key, frame.ID)
	}
}

func (s *Server) onDisconnect(sess *reactor.Session) {}
