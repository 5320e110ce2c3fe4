package loginshard

import (
	"testing"

	"github.com/originfall/core/internal/entity"
)

func TestLoginDataRoundTrip(t *testing.T) {
	ld := LoginData{
		SerialKey:  0xdeadbeefcafebabe,
		PCUID:      4242,
		FEKey:      0x1122334455667788,
		ServerTime: 99999,
		Style:      entity.Style{Gender: 1, FaceStyle: 2, HairStyle: 3, HairColor: 4, SkinColor: 5, EyeColor: 6, Height: 7, Body: 8},
	}
	got, err := decodeLoginData(ld.encode())
	if err != nil {
		t.Fatalf("decodeLoginData: %v", err)
	}
	if got != ld {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ld)
	}
}

func TestUpdatePCShardRoundTrip(t *testing.T) {
	for _, entered := range []bool{true, false} {
		u := UpdatePCShard{PCUID: 77, Entered: entered}
		got, err := decodeUpdatePCShard(u.encode())
		if err != nil {
			t.Fatalf("decodeUpdatePCShard: %v", err)
		}
		if got != u {
			t.Fatalf("round trip mismatch for entered=%v: got %+v", entered, got)
		}
	}
}

func TestChannelStatusesRoundTrip(t *testing.T) {
	c := ChannelStatuses{Statuses: []byte{0, 1, 2, 3, 0, 0}}
	got, err := decodeChannelStatuses(c.encode())
	if err != nil {
		t.Fatalf("decodeChannelStatuses: %v", err)
	}
	if string(got.Statuses) != string(c.Statuses) {
		t.Fatalf("round trip mismatch: got %v, want %v", got.Statuses, c.Statuses)
	}
}
