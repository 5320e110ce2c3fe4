package chatcmd

import (
	"testing"

	"github.com/originfall/core/internal/entity"
)

func newPlayer(perms int32) *entity.Player {
	p := entity.NewPlayer(1, 1, 1)
	p.Name = "tester"
	p.Perms = perms
	return p
}

func TestDispatchNonCommandPassesThrough(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(99)
	_, matched, err := r.Dispatch(&Context{Caller: caller}, "hello there")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if matched {
		t.Fatalf("plain chat should not match a command")
	}
}

func TestDispatchUnknownCommandPassesThrough(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(99)
	_, matched, err := r.Dispatch(&Context{Caller: caller}, "/nosuch arg")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if matched {
		t.Fatalf("unknown command should not match")
	}
}

func TestPermsOutOfRangeScenarioS4(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(30)
	ctx := &Context{Caller: caller}

	reply, matched, err := r.Dispatch(ctx, "/perms . 5")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !matched {
		t.Fatalf("/perms should match")
	}
	const want = "Can only grant weaker permissions than your own (> 30)"
	if reply != want {
		t.Fatalf("reply = %q, want %q", reply, want)
	}
	if caller.Perms != 30 {
		t.Fatalf("caller.Perms mutated to %d, want unchanged 30", caller.Perms)
	}
}

func TestPermsGrantSucceeds(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(1)
	target := newPlayer(50)
	target.Name = "weakling"
	ctx := &Context{
		Caller: caller,
		ResolvePlayer: func(name string) (*entity.Player, bool) {
			if name == "weakling" {
				return target, true
			}
			return nil, false
		},
	}

	reply, matched, err := r.Dispatch(ctx, "/perms weakling 10")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !matched {
		t.Fatalf("/perms should match")
	}
	if target.Perms != 10 {
		t.Fatalf("target.Perms = %d, want 10", target.Perms)
	}
	if reply == "" {
		t.Fatalf("expected a confirmation reply")
	}
}

func TestPermsRejectsOutOfRangeLevel(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(1)
	ctx := &Context{Caller: caller}

	reply, matched, err := r.Dispatch(ctx, "/perms . 100")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !matched {
		t.Fatalf("/perms should match")
	}
	if caller.Perms != 1 {
		t.Fatalf("caller.Perms mutated, want unchanged")
	}
	if reply == "" {
		t.Fatalf("expected a rejection reply")
	}
}

func TestUnknownPlayerName(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(1)
	ctx := &Context{
		Caller:        caller,
		ResolvePlayer: func(name string) (*entity.Player, bool) { return nil, false },
	}
	reply, matched, err := r.Dispatch(ctx, "/perms ghost 5")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !matched {
		t.Fatalf("/perms should match")
	}
	if reply != "no such player: ghost" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestHelpListsCommands(t *testing.T) {
	r := NewRegistry()
	caller := newPlayer(1)
	reply, matched, err := r.Dispatch(&Context{Caller: caller}, "/help")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !matched {
		t.Fatalf("/help should match")
	}
	if reply == "" {
		t.Fatalf("expected a non-empty command list")
	}
}
