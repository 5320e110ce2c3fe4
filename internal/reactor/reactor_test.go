package reactor

import (
	"net"
	"testing"
	"time"

	"github.com/originfall/core/internal/wire"
)

func TestAcceptAndDispatch(t *testing.T) {
	received := make(chan wire.ID, 1)
	handler := func(s *Session, frame wire.Frame) error {
		received <- frame.ID
		return nil
	}

	r, err := New("127.0.0.1:18765", 50*time.Millisecond, handler, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	done := make(chan struct{})
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if err := r.Poll(); err != nil {
				t.Errorf("Poll: %v", err)
				return
			}
			select {
			case <-done:
				return
			default:
			}
		}
	}()

	conn, err := net.Dial("tcp", "127.0.0.1:18765")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	cipher := wire.NewCipher()
	frame := wire.Encode(wire.PCL2LSReqLogin, []byte("alicex"))
	body := frame[wire.HeaderSize:]
	cipher.XORBlocks(body)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case id := <-received:
		if id != wire.PCL2LSReqLogin {
			t.Fatalf("got packet id %d, want %d", id, wire.PCL2LSReqLogin)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}
	close(done)
}
