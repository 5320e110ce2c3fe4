package login

import (
	"encoding/binary"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/originfall/core/internal/config"
	"github.com/originfall/core/internal/db"
	"github.com/originfall/core/internal/loginshard"
	"github.com/originfall/core/internal/wire"
)

// TestPickShardSelectsLeastLoaded covers §4.9's load-balancing rule: among
// connected shards, the one with the lowest self-reported population
// wins, and a shard with no live link is never selected.
func TestPickShardSelectsLeastLoaded(t *testing.T) {
	srv := &Server{shards: map[string]*shardEntry{
		"shard-1": {link: &loginshard.Link{}, clientAddr: "127.0.0.1:23000", population: 40},
		"shard-2": {link: &loginshard.Link{}, clientAddr: "127.0.0.1:23001", population: 5},
		"shard-3": {clientAddr: "127.0.0.1:23002", population: 0}, // no link: not connected
	}}

	id, addr, link, ok := srv.pickShard()
	if !ok {
		t.Fatalf("pickShard: expected a shard to be selected")
	}
	if id != "shard-2" || addr != "127.0.0.1:23001" {
		t.Fatalf("pickShard selected %q (%q), want shard-2 (127.0.0.1:23001)", id, addr)
	}
	if link == nil {
		t.Fatalf("pickShard returned a nil link for a connected shard")
	}
}

// TestPickShardNoneConnected covers the all-shards-down case §7 requires
// handleReqLogin to treat as a server error rather than a panic.
func TestPickShardNoneConnected(t *testing.T) {
	srv := &Server{shards: map[string]*shardEntry{
		"shard-1": {clientAddr: "127.0.0.1:23000"},
	}}
	if _, _, _, ok := srv.pickShard(); ok {
		t.Fatalf("pickShard: expected ok=false with no connected shards")
	}
}

func newTestLoginServer(t *testing.T, addr string) *Server {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "login.db")
	gw, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	cfg := config.DefaultConfig()
	cfg.Role = "login"
	cfg.ListenAddr = addr
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.ShardEndpoints = nil

	srv, err := New(cfg, gw, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("login.New: %v", err)
	}
	t.Cleanup(func() { srv.Reactor.Close() })
	return srv
}

func runLoginPollLoop(t *testing.T, srv *Server, done <-chan struct{}) {
	t.Helper()
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := srv.Run(); err != nil {
				return
			}
		}
	}()
}

func writeFrame(t *testing.T, conn net.Conn, id wire.ID, payload []byte) {
	t.Helper()
	cipher := wire.NewCipher()
	frame := wire.Encode(id, payload)
	body := frame[wire.HeaderSize:]
	cipher.XORBlocks(body)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) wire.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var lenBuf [4]byte
	total := 0
	for total < len(lenBuf) {
		n, err := conn.Read(lenBuf[total:])
		total += n
		if err != nil {
			t.Fatalf("read length header: %v", err)
		}
	}
	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, bodyLen)
	total = 0
	for total < len(body) {
		n, err := conn.Read(body[total:])
		total += n
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
	}

	cipher := wire.NewCipher()
	cipher.XORBlocks(body)
	frame, err := wire.DecodeBody(body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return frame
}

// TestHandleReqLoginUnknownAccountSendsFail covers the no-such-account
// rejection path: LOGIN_FAIL, session left open (§7).
func TestHandleReqLoginUnknownAccountSendsFail(t *testing.T) {
	addr := "127.0.0.1:19901"
	srv := newTestLoginServer(t, addr)

	done := make(chan struct{})
	defer close(done)
	runLoginPollLoop(t, srv, done)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	w := wire.NewWriter(64)
	w.FixedString16("nobody", sizeofLoginField)
	w.FixedString16("whatever", sizeofLoginField)
	writeFrame(t, conn, wire.PCL2LSReqLogin, w.Bytes())

	frame := readFrame(t, conn)
	if frame.ID != wire.PLS2CLRepLoginFail {
		t.Fatalf("got packet id %d, want PLS2CLRepLoginFail (%d)", frame.ID, wire.PLS2CLRepLoginFail)
	}
}

// TestHandleReqLoginNoShardAvailable covers the connected-but-no-shard
// case once credentials check out: LOGIN_FAIL with ExitCodeServerError,
// not a disconnect.
func TestHandleReqLoginNoShardAvailable(t *testing.T) {
	addr := "127.0.0.1:19902"
	srv := newTestLoginServer(t, addr)
	srv.verifyPass = func(storedHash, password string) bool { return true }

	if _, err := srv.DB.CreateAccount("alice", "irrelevant-hash"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	done := make(chan struct{})
	defer close(done)
	runLoginPollLoop(t, srv, done)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	w := wire.NewWriter(64)
	w.FixedString16("alice", sizeofLoginField)
	w.FixedString16("whatever", sizeofLoginField)
	writeFrame(t, conn, wire.PCL2LSReqLogin, w.Bytes())

	frame := readFrame(t, conn)
	if frame.ID != wire.PLS2CLRepLoginFail {
		t.Fatalf("got packet id %d, want PLS2CLRepLoginFail (%d)", frame.ID, wire.PLS2CLRepLoginFail)
	}
	r := wire.NewReader(frame.Payload)
	if code := r.I32(); code != wire.ExitCodeServerError {
		t.Fatalf("got exit code %d, want ExitCodeServerError (%d)", code, wire.ExitCodeServerError)
	}
}
