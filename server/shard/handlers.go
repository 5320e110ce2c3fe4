package shard

import (
	"fmt"

	"github.com/originfall/core/internal/chatcmd"
	"github.com/originfall/core/internal/entity"
	"github.com/originfall/core/internal/reactor"
	"github.com/originfall/core/internal/spatial"
	"github.com/originfall/core/internal/wire"
)

// handlePCEnter implements §4.9 steps 3-5: pop the login-staged ticket,
// load the player, assign it a channel, and flip the session over to
// fe_key mode. A bad or already-consumed serial_key is a *logical*
// failure, not a malformed frame, so per §7 it gets PC_ENTER_FAIL and a
// live session rather than a disconnect.
func (s *Server) handlePCEnter(sess *reactor.Session, payload []byte) error {
	r := wire.NewReader(payload)
	serialKey := r.U64()
	if err := r.Err(); err != nil {
		return reactor.Disconnect(reactor.SeverityWarning, "shard: session %d sent malformed PC_ENTER: %v", sess.Key, err)
	}

	ld, ok := s.Pending.Pop(serialKey)
	if !ok {
		sess.SendPacket(wire.PFE2CLRepPCEnterFail, pcEnterFailPayload(wire.ExitCodeReqByPC))
		return nil
	}

	player, err := s.DB.LoadPlayer(ld.AccountID, ld.PCUID)
	if err != nil {
		if s.Log != nil {
			s.Log.Error(err, "shard: pc_enter load_player failed")
		}
		sess.SendPacket(wire.PFE2CLRepPCEnterFail, pcEnterFailPayload(wire.ExitCodeServerError))
		return nil
	}

	pcID := s.EntityMap.GenNextPCID()
	player.AssignID(pcID)
	player.Style = ld.Style

	channel := s.EntityMap.GetMinPopChannelNum(s.cfg.ChannelCount)
	player.Instance.ChannelNum = channel

	if _, err := s.EntityMap.Track(player); err != nil {
		if s.Log != nil {
			s.Log.Error(err, "shard: pc_enter track failed")
		}
		sess.SendPacket(wire.PFE2CLRepPCEnterFail, pcEnterFailPayload(wire.ExitCodeServerError))
		return nil
	}
	chunk := player.ChunkCoords()
	if err := s.EntityMap.Update(player.ID(), &chunk, s.Reactor); err != nil && s.Log != nil {
		s.Log.Error(err, "shard: pc_enter initial chunk placement failed")
	}

	sess.Kind = reactor.ClientGame
	sess.Game.AccountID = ld.AccountID
	sess.Game.SerialKey = serialKey
	sess.Game.PCID = pcID

	key := wire.DeriveEKey(ld.ServerTime, uint32(pcID)+1, uint32(player.FusionMatter)+1)

	w := wire.NewWriter(32)
	w.I32(pcID)
	w.U64(ld.ServerTime)
	w.U64(key)
	w.I32(channel)
	w.FixedString16(player.Name, 32)
	sess.SendPacket(wire.PFE2CLRepPCEnterSucc, w.Bytes())

	sess.Cipher().SwitchToFEKey(key)

	if s.Log != nil {
		s.Log.PCEntered(pcID, player.UID, channel)
	}

	s.reportPCShard(player.UID, true)
	return nil
}

func pcEnterFailPayload(exitCode int32) []byte {
	w := wire.NewWriter(4)
	w.I32(exitCode)
	return w.Bytes()
}

// handleFreeChat implements the free-chat packet §6 names as a command
// dispatcher's input: payloads beginning with '/' are routed through the
// chat command registry; everything else is broadcast verbatim to the
// sender's interest set as an ordinary system message. The gameplay
// handlers for individual commands are out of scope (§1); only the
// registry contract and the permission rule are implemented here.
func (s *Server) handleFreeChat(sess *reactor.Session, payload []byte) error {
	if sess.Kind != reactor.ClientGame || sess.Game.PCID == 0 {
		return reactor.Warn("shard: session %d sent FREE_CHAT before pc_enter", sess.Key)
	}
	r := wire.NewReader(payload)
	line := r.FixedString16(wire.SizeofFreeChatString)
	if err := r.Err(); err != nil {
		return reactor.Disconnect(reactor.SeverityWarning, "shard: session %d sent malformed FREE_CHAT: %v", sess.Key, err)
	}

	e, ok := s.EntityMap.GetPlayer(sess.Game.PCID)
	if !ok {
		return reactor.Warn("shard: session %d has no tracked player", sess.Key)
	}
	caller := e.(*entity.Player)

	ctx := &chatcmd.Context{
		Caller: caller,
		ResolvePlayer: func(name string) (*entity.Player, bool) {
			found, ok := s.EntityMap.FindPlayer(func(e spatial.Entity) bool {
				p, ok := e.(*entity.Player)
				return ok && p.Name == name
			})
			if !ok {
				return nil, false
			}
			return found.(*entity.Player), true
		},
	}

	reply, matched, err := s.Chat.Dispatch(ctx, line)
	if err != nil {
		return reactor.Warn("shard: session %d chat command error: %v", sess.Key, err)
	}
	if matched {
		sendSystemMessage(sess, reply)
		return nil
	}

	broadcast := fmt.Sprintf("%s: %s", caller.Name, line)
	_ = s.EntityMap.ForEachAround(caller.ID(), s.Reactor, func(observer *reactor.Session) {
		sendSystemMessage(observer, broadcast)
	})
	return nil
}

func sendSystemMessage(sess *reactor.Session, msg string) {
	w := wire.NewWriter(wire.SizeofFreeChatString * 2)
	w.FixedString16(msg, wire.SizeofFreeChatString)
	sess.SendPacket(wire.PFE2CLSystemMessage, w.Bytes())
}

// handleReqMakeBuddy implements scenario S3's request half: validate
// proximity, reject if B is already on A's buddy list, then forward the
// accept prompt to B. A full buddy list is not checked here; AddBuddy
// rejects it in the accept half.
func (s *Server) handleReqMakeBuddy(sess *reactor.Session, payload []byte) error {
	if sess.Kind != reactor.ClientGame || sess.Game.PCID == 0 {
		return reactor.Warn("shard: session %d sent REQ_MAKE_BUDDY before pc_enter", sess.Key)
	}
	r := wire.NewReader(payload)
	targetPCID := r.I32()
	if err := r.Err(); err != nil {
		return reactor.Disconnect(reactor.SeverityWarning, "shard: session %d sent malformed REQ_MAKE_BUDDY: %v", sess.Key, err)
	}

	aEnt, ok := s.EntityMap.GetPlayer(sess.Game.PCID)
	if !ok {
		return reactor.Warn("shard: session %d has no tracked player", sess.Key)
	}
	a := aEnt.(*entity.Player)

	bEnt, ok := s.EntityMap.GetPlayer(targetPCID)
	if !ok {
		sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
		return nil
	}
	b := bEnt.(*entity.Player)

	if err := s.EntityMap.ValidateProximity([]spatial.EntityID{a.ID(), b.ID()}, entity.RangeInteract); err != nil {
		sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
		return nil
	}

	for _, uid := range a.Buddies {
		if uid == b.UID {
			sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
			return nil
		}
	}

	a.BuddyOfferedTo = &b.UID

	if target, ok := s.Reactor.SessionForPlayer(targetPCID); ok {
		w := wire.NewWriter(36)
		w.I32(sess.Game.PCID)
		w.FixedString16(a.Name, 32)
		target.SendPacket(wire.PFE2CLRepMakeBuddySuccToAccepter, w.Bytes())
	}
	return nil
}

func sendMakeBuddyFail(sess *reactor.Session, exitCode int32) {
	w := wire.NewWriter(4)
	w.I32(exitCode)
	sess.SendPacket(wire.PFE2CLAcceptMakeBuddyFail, w.Bytes())
}

// handleAcceptMakeBuddy implements scenario S3's accept half. The
// compensating branch (§7) removes the half-added entry from whichever
// side succeeded before sending the deny packet, so a failure never
// leaves the pair's buddy lists inconsistent with each other.
func (s *Server) handleAcceptMakeBuddy(sess *reactor.Session, payload []byte) error {
	if sess.Kind != reactor.ClientGame || sess.Game.PCID == 0 {
		return reactor.Warn("shard: session %d sent ACCEPT_MAKE_BUDDY before pc_enter", sess.Key)
	}
	r := wire.NewReader(payload)
	initiatorPCID := r.I32()
	accept := r.U8() != 0
	if err := r.Err(); err != nil {
		return reactor.Disconnect(reactor.SeverityWarning, "shard: session %d sent malformed ACCEPT_MAKE_BUDDY: %v", sess.Key, err)
	}

	bEnt, ok := s.EntityMap.GetPlayer(sess.Game.PCID)
	if !ok {
		return reactor.Warn("shard: session %d has no tracked player", sess.Key)
	}
	b := bEnt.(*entity.Player)

	aEnt, ok := s.EntityMap.GetPlayer(initiatorPCID)
	if !ok || !accept {
		sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
		return nil
	}
	a := aEnt.(*entity.Player)

	if a.BuddyOfferedTo == nil || *a.BuddyOfferedTo != b.UID {
		sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
		return nil
	}

	aSlot, err := a.AddBuddy(b.UID)
	if err != nil {
		sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
		return nil
	}
	bSlot, err := b.AddBuddy(a.UID)
	if err != nil {
		_ = a.RemoveBuddy(b.UID) // compensate: undo the half-added entry
		sendMakeBuddyFail(sess, wire.ExitCodeReqByPC)
		return nil
	}

	a.ClearBuddyOffer()

	w := wire.NewWriter(8)
	w.I32(int32(aSlot))
	w.I32(int32(bSlot))
	sess.SendPacket(wire.PFE2CLAcceptMakeBuddySucc, w.Bytes())

	if initiator, ok := s.Reactor.SessionForPlayer(initiatorPCID); ok {
		w := wire.NewWriter(8)
		w.I32(int32(bSlot))
		w.I32(int32(aSlot))
		initiator.SendPacket(wire.PFE2CLAcceptMakeBuddySucc, w.Bytes())
	}
	return nil
}
