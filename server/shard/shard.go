// Package shard wires the shard-server process: the reactor, the entity
// map, the persistence gateway, the tick scheduler, the chat command
// registry, and the login<->shard control link, into the packet handler
// table spec.md §4 describes. It is the thinnest possible caller of
// internal/* — §1 places gameplay-handler business logic (buddy, trade,
// warp) out of scope, so each handler here does the minimum protocol
// bookkeeping spec.md names as an invariant and nothing else.
package shard

import (
	"fmt"
	"time"

	"github.com/originfall/core/internal/chatcmd"
	"github.com/originfall/core/internal/config"
	"github.com/originfall/core/internal/db"
	"github.com/originfall/core/internal/entity"
	"github.com/originfall/core/internal/loginshard"
	"github.com/originfall/core/internal/observability"
	"github.com/originfall/core/internal/ratelimit"
	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/scheduler"
	"github.com/originfall/core/internal/spatial"
	"github.com/originfall/core/internal/wire"
)

// Server owns every piece of shard-process state the handler table
// closes over. Exactly one exists per process, and (per §5) it is only
// ever touched from the single goroutine driving Reactor.Poll/Run, except
// for IngestLoginData, which the control-link reader calls and which only
// touches the mutex-guarded Pending table and Metrics.
type Server struct {
	cfg *config.Config

	Reactor   *reactor.Reactor
	EntityMap *spatial.EntityMap
	DB        *db.Gateway
	Scheduler *scheduler.Scheduler
	Chat      *chatcmd.Registry
	Pending   *loginshard.PendingTable

	Log     *observability.Logger
	Metrics *observability.Metrics

	loginLink *loginshard.Link
}

// New wires a shard Server. loginLink may be nil (e.g. in a test that
// exercises packet handling without a real login-server connection);
// production callers pass the *loginshard.Link returned by DialShard.
func New(cfg *config.Config, gw *db.Gateway, saveQueue *db.SaveQueue, log *observability.Logger, metrics *observability.Metrics, loginLink *loginshard.Link) (*Server, error) {
	srv := &Server{
		cfg:       cfg,
		EntityMap: spatial.New(),
		DB:        gw,
		Chat:      chatcmd.NewRegistry(),
		Pending:   loginshard.NewPendingTable(),
		Log:       log,
		Metrics:   metrics,
		loginLink: loginLink,
	}

	r, err := reactor.New(cfg.ListenAddr, cfg.PollTimeout, srv.dispatch, srv.onDisconnect)
	if err != nil {
		return nil, fmt.Errorf("shard: start reactor: %w", err)
	}
	srv.Reactor = r

	acceptLimiter := ratelimit.NewTokenBucket(cfg.AcceptRatePerSecond, cfg.AcceptBurst)
	r.SetAcceptGate(func() bool { return acceptLimiter.Allow(1) })

	schedCfg := scheduler.Config{
		TickPeriod:          cfg.TickPeriod,
		VehicleExpiryPeriod: cfg.VehicleExpiryPeriod,
		AutosavePeriod:      cfg.AutosavePeriod,
		KeepalivePeriod:     cfg.KeepalivePeriod,
		SessionIdleTimeout:  cfg.SessionIdleTimeout,
	}
	srv.Scheduler = scheduler.New(schedCfg, srv.EntityMap, r, gw, saveQueue, srv.heartbeat)

	return srv, nil
}

// Run drives one reactor poll pass plus whatever scheduler tasks are due
// at now; cmd/shardserver loops this until shutdown.
func (s *Server) Run(now time.Time) error {
	if err := s.Reactor.Poll(); err != nil {
		return err
	}
	s.Scheduler.Run(now)
	return nil
}

// dispatch is the reactor.Handler closed over every wired subsystem. It
// is a plain switch rather than a map so each case can return a typed
// reactor.Error distinguishing a disconnect from a recoverable warning
// (§7).
func (s *Server) dispatch(sess *reactor.Session, frame wire.Frame) error {
	switch frame.ID {
	case wire.PCL2FEReqPCEnter:
		return s.handlePCEnter(sess, frame.Payload)
	case wire.PCL2FEFreeChat:
		return s.handleFreeChat(sess, frame.Payload)
	case wire.PCL2FEReqMakeBuddy:
		return s.handleReqMakeBuddy(sess, frame.Payload)
	case wire.PCL2FEAcceptMakeBuddy:
		return s.handleAcceptMakeBuddy(sess, frame.Payload)
	default:
		return reactor.Warn("shard: session %d sent unhandled packet id %d", sess.Key, frame.ID)
	}
}

// onDisconnect runs synchronously before the session is torn down
// (§4.3): untrack the player from the entity map and tell the login
// server it exited.
func (s *Server) onDisconnect(sess *reactor.Session) {
	if sess.Kind != reactor.ClientGame || sess.Game.PCID == 0 {
		return
	}
	pcID := sess.Game.PCID
	id := spatial.EntityID{Kind: spatial.KindPlayer, Num: pcID}
	var uid int64
	if e, ok := s.EntityMap.GetPlayer(pcID); ok {
		if p, ok := e.(*entity.Player); ok {
			uid = p.UID
			p.ClearBuddyOffer()
			if err := s.DB.SavePlayer(p); err != nil && s.Log != nil {
				s.Log.PlayerSaveFailed(pcID, uid, err)
			}
		}
	}
	s.EntityMap.Untrack(id)
	s.reportPCShard(uid, false)
}

// heartbeat is the scheduler's keepalive hook (§4.9: the shard's
// persistent login-server connection carries its own liveness signal
// independent of client idle timeouts).
func (s *Server) heartbeat(now time.Time) {
	if s.loginLink == nil {
		return
	}
	statuses := s.EntityMap.GetChannelStatuses(s.cfg.ChannelCount, s.cfg.ChannelCapacity)
	if err := s.loginLink.SendChannelStatuses(loginshard.ChannelStatuses{Statuses: statuses}); err != nil && s.Log != nil {
		s.Log.LoginShardLinkFailed(s.cfg.ShardID, err)
	}
}

// reportPCShard forwards an UPDATE_PC_SHARD notification, §4.9 steps 5-6.
func (s *Server) reportPCShard(pcUID int64, entered bool) {
	if s.loginLink == nil {
		return
	}
	if err := s.loginLink.SendUpdatePCShard(loginshard.UpdatePCShard{PCUID: pcUID, Entered: entered}); err != nil && s.Log != nil {
		s.Log.LoginShardLinkFailed(s.cfg.ShardID, err)
	}
	s.heartbeat(time.Now())
}

// IngestLoginData is called from the goroutine reading s.loginLink.Recv
// whenever the login server forwards a ticket ahead of the matching
// client connection (§4.9 step 2); it just stages the ticket for the
// PC_ENTER handler to pop.
func (s *Server) IngestLoginData(ld loginshard.LoginData) {
	s.Pending.Put(ld)
	if s.Metrics != nil {
		s.Metrics.RecordLoginShardFrame("login_data")
	}
}
