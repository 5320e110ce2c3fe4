package loginshard

import (
	"net"
	"testing"
	"time"

	"github.com/originfall/core/internal/identity"
)

func newTestLinkPair(t *testing.T) (*Link, *Link) {
	t.Helper()
	shardKey, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate shard identity: %v", err)
	}
	loginKey, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate login identity: %v", err)
	}

	clientConn, serverConn := net.Pipe()

	type result struct {
		link *Link
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		keys, err := clientHandshake(clientConn, "shard-1", shardKey, nil)
		if err != nil {
			clientCh <- result{err: err}
			return
		}
		clientCh <- result{link: &Link{conn: clientConn, keys: keys}}
	}()
	go func() {
		keys, err := serverHandshake(serverConn, "shard-1", loginKey, nil)
		if err != nil {
			serverCh <- result{err: err}
			return
		}
		serverCh <- result{link: &Link{conn: serverConn, keys: keys}}
	}()

	var cr, sr result
	select {
	case cr = <-clientCh:
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake timed out")
	}
	select {
	case sr = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake timed out")
	}
	if cr.err != nil {
		t.Fatalf("client handshake: %v", cr.err)
	}
	if sr.err != nil {
		t.Fatalf("server handshake: %v", sr.err)
	}
	if cr.link.keys != sr.link.keys {
		t.Fatalf("client/server derived different session keys")
	}
	return cr.link, sr.link
}

func TestHandshakeDerivesMatchingKeys(t *testing.T) {
	shard, login := newTestLinkPair(t)
	shard.Close()
	login.Close()
}

func TestLinkSendLoginDataRoundTrip(t *testing.T) {
	shard, login := newTestLinkPair(t)
	defer shard.Close()
	defer login.Close()

	ld := LoginData{SerialKey: 1, PCUID: 55, FEKey: 123, ServerTime: 456}
	done := make(chan error, 1)
	go func() { done <- shard.SendLoginData(ld) }()

	msg, err := login.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SendLoginData: %v", err)
	}
	if msg.LoginData == nil || *msg.LoginData != ld {
		t.Fatalf("received LoginData %+v, want %+v", msg.LoginData, ld)
	}
}

func TestLinkWrongKeyCannotDecrypt(t *testing.T) {
	shard, login := newTestLinkPair(t)
	defer shard.Close()
	defer login.Close()

	// Corrupt the receiver's key to simulate a tampered/forged frame.
	login.keys.PayloadKey[0] ^= 0xFF

	done := make(chan error, 1)
	go func() { done <- shard.SendLoginData(LoginData{SerialKey: 9}) }()

	if _, err := login.Recv(); err == nil {
		t.Fatalf("Recv succeeded with a mismatched key, want authentication failure")
	}
	<-done
}
