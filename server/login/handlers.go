package login

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"

	"github.com/originfall/core/internal/loginshard"
	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/wire"
)

const (
	sizeofLoginField = 32 // UTF-16LE code units, matches the legacy client's login/password fields
)

// handleReqLogin implements §4.9 step 1: authenticate, pick the
// least-loaded shard, mint a one-time serial_key/fe_key pair, forward
// LoginData ahead of the client, and reply LOGIN_SUCC/LOGIN_FAIL. Every
// rejection path (bad password, ban, no shard available) sends FAIL and
// returns nil rather than disconnecting — §7's "handlers always return
// success to the reactor when they have sent a valid protocol reply".
func (s *Server) handleReqLogin(sess *reactor.Session, payload []byte) error {
	r := wire.NewReader(payload)
	login := r.FixedString16(sizeofLoginField)
	password := r.FixedString16(sizeofLoginField)
	if err := r.Err(); err != nil {
		return reactor.Disconnect(reactor.SeverityWarning, "login: session %d sent malformed REQ_LOGIN: %v", sess.Key, err)
	}

	account, err := s.DB.FindAccountByLogin(login)
	if err != nil {
		sendLoginFail(sess, wire.ExitCodeReqByPC)
		return nil
	}

	now := time.Now()
	if account.BannedUntil != nil && now.Before(*account.BannedUntil) {
		sendLoginFail(sess, wire.ExitCodeReqByPC)
		return nil
	}

	if s.verifyPass == nil || !s.verifyPass(account.PasswordHash, password) {
		sendLoginFail(sess, wire.ExitCodeReqByPC)
		return nil
	}

	shardID, clientAddr, link, ok := s.pickShard()
	if !ok {
		sendLoginFail(sess, wire.ExitCodeServerError)
		return nil
	}

	serialKey, err := loginshard.GenerateSerialKey()
	if err != nil {
		sendLoginFail(sess, wire.ExitCodeServerError)
		return nil
	}
	feKey, err := randomFEKey()
	if err != nil {
		sendLoginFail(sess, wire.ExitCodeServerError)
		return nil
	}

	ld := loginshard.LoginData{
		SerialKey:  serialKey,
		AccountID:  account.AccountID,
		PCUID:      int64(account.Selected),
		FEKey:      feKey,
		ServerTime: uint64(now.Unix()),
	}
	if err := link.SendLoginData(ld); err != nil {
		if s.Log != nil {
			s.Log.LoginShardLinkFailed(shardID, err)
		}
		sendLoginFail(sess, wire.ExitCodeServerError)
		return nil
	}
	if s.Metrics != nil {
		s.Metrics.RecordLoginShardFrame("login_data")
	}

	w := wire.NewWriter(64)
	w.U64(serialKey)
	w.U64(feKey)
	w.U64(ld.ServerTime)
	w.FixedString16(clientAddr, 64)
	sess.SendPacket(wire.PLS2CLRepLoginSucc, w.Bytes())
	return nil
}

func sendLoginFail(sess *reactor.Session, exitCode int32) {
	w := wire.NewWriter(4)
	w.I32(exitCode)
	sess.SendPacket(wire.PLS2CLRepLoginFail, w.Bytes())
}

func randomFEKey() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.New("login: fe_key rand: " + err.Error())
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
