// Package loginshard implements the persistent login↔shard control
// channel (§4.9): the login server forwards each authenticated player's
// LoginData to the shard it assigned, keyed by a one-time serial key, and
// the shard reports population changes back so the login server can pick
// the least-loaded channel/shard for the next arrival.
//
// Framing and transport are grounded on daemon/transport/control_stream.go
// (a single long-lived stream carrying typed, length-prefixed messages):
// link.go opens one QUIC connection per shard↔login pair and carries every
// message on a single stream of it. Payload encoding reuses internal/wire's Writer/Reader so
// the same little-endian primitive helpers serve both the client-facing
// and server-facing wire formats.
package loginshard

import (
	"github.com/originfall/core/internal/entity"
	"github.com/originfall/core/internal/wire"
)

// LoginData is what the login server hands a shard for a player it has
// just authenticated and routed (§4.9 step 2).
type LoginData struct {
	SerialKey  uint64
	AccountID  int64
	PCUID      int64
	FEKey      uint64
	ServerTime uint64
	Style      entity.Style
}

func (ld LoginData) encode() []byte {
	w := wire.NewWriter(56)
	w.U64(ld.SerialKey)
	w.I64(ld.AccountID)
	w.I64(ld.PCUID)
	w.U64(ld.FEKey)
	w.U64(ld.ServerTime)
	w.I8(ld.Style.Gender)
	w.I8(ld.Style.FaceStyle)
	w.I8(ld.Style.HairStyle)
	w.I8(ld.Style.HairColor)
	w.I8(ld.Style.SkinColor)
	w.I8(ld.Style.EyeColor)
	w.I8(ld.Style.Height)
	w.I8(ld.Style.Body)
	return w.Bytes()
}

func decodeLoginData(payload []byte) (LoginData, error) {
	r := wire.NewReader(payload)
	var ld LoginData
	ld.SerialKey = r.U64()
	ld.AccountID = r.I64()
	ld.PCUID = r.I64()
	ld.FEKey = r.U64()
	ld.ServerTime = r.U64()
	ld.Style.Gender = r.I8()
	ld.Style.FaceStyle = r.I8()
	ld.Style.HairStyle = r.I8()
	ld.Style.HairColor = r.I8()
	ld.Style.SkinColor = r.I8()
	ld.Style.EyeColor = r.I8()
	ld.Style.Height = r.I8()
	ld.Style.Body = r.I8()
	if err := r.Err(); err != nil {
		return LoginData{}, err
	}
	return ld, nil
}

// UpdatePCShard reports a population change for one player (§4.9 steps
// 5-6: entered a shard, or exited/disconnected from one).
type UpdatePCShard struct {
	PCUID   int64
	Entered bool
}

func (u UpdatePCShard) encode() []byte {
	w := wire.NewWriter(9)
	w.I64(u.PCUID)
	if u.Entered {
		w.U8(1)
	} else {
		w.U8(0)
	}
	return w.Bytes()
}

func decodeUpdatePCShard(payload []byte) (UpdatePCShard, error) {
	r := wire.NewReader(payload)
	var u UpdatePCShard
	u.PCUID = r.I64()
	u.Entered = r.U8() != 0
	if err := r.Err(); err != nil {
		return UpdatePCShard{}, err
	}
	return u, nil
}

// ChannelStatuses is the shard's compressed per-channel load report, the
// same byte layout spatial.EntityMap.GetChannelStatuses already produces
// for the client-facing channel-select screen.
type ChannelStatuses struct {
	Statuses []byte
}

func (c ChannelStatuses) encode() []byte {
	w := wire.NewWriter(len(c.Statuses) + 4)
	w.U32(uint32(len(c.Statuses)))
	w.Raw(c.Statuses)
	return w.Bytes()
}

func decodeChannelStatuses(payload []byte) (ChannelStatuses, error) {
	r := wire.NewReader(payload)
	n := r.U32()
	raw := r.Raw(int(n))
	if err := r.Err(); err != nil {
		return ChannelStatuses{}, err
	}
	return ChannelStatuses{Statuses: raw}, nil
}
