// Package chatcmd implements the chat command registry spec.md §6
// describes as an external caller's contract: a small table keyed by
// command name, dispatched out of free-chat packets whose payload begins
// with '/'. The registry and the permission rule (Testable Property 8)
// are in scope; the actual gameplay behind /about, /refresh and /help is
// not, so those handlers return a fixed acknowledgement rather than
// implementing the business logic spec.md places out of scope.
//
// Shaped after the teacher's REST handler table in daemon/api/server:
// one name, one func, looked up and invoked by a dispatcher that never
// needs to know the handler set in advance.
package chatcmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/originfall/core/internal/entity"
)

// Context carries what a handler needs to resolve and answer a command.
// ResolvePlayer looks up another online player by name; callers wire it
// to whatever session/entity-map lookup their process keeps, so this
// package never imports internal/reactor or internal/spatial itself.
type Context struct {
	Caller        *entity.Player
	ResolvePlayer func(name string) (*entity.Player, bool)
}

// Handler executes one command and returns the system-message text to
// send back to the caller.
type Handler func(ctx *Context, args []string) (string, error)

// Registry is a name -> Handler table. The zero value is usable.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a Registry with the built-in about/perms/refresh/help
// commands already registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("about", handleAbout)
	r.Register("perms", handlePerms)
	r.Register("refresh", handleRefresh)
	r.Register("help", handleHelp(r))
	return r
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	if r.handlers == nil {
		r.handlers = make(map[string]Handler)
	}
	r.handlers[strings.ToLower(name)] = h
}

// Names returns every registered command name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Dispatch parses a free-chat line and invokes the matching handler.
// line is the raw chat payload including the leading '/'; a line that
// does not start with '/' or names an unknown command is not a command
// dispatch error — callers should simply treat it as ordinary chat.
func (r *Registry) Dispatch(ctx *Context, line string) (string, bool, error) {
	if !strings.HasPrefix(line, "/") {
		return "", false, nil
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return "", false, nil
	}
	name := strings.ToLower(fields[0])
	h, ok := r.handlers[name]
	if !ok {
		return "", false, nil
	}
	reply, err := h(ctx, fields[1:])
	return reply, true, err
}

func handleAbout(ctx *Context, args []string) (string, error) {
	return "originfall cluster core", nil
}

func handleRefresh(ctx *Context, args []string) (string, error) {
	return "refresh acknowledged", nil
}

func handleHelp(r *Registry) Handler {
	return func(ctx *Context, args []string) (string, error) {
		return "commands: " + strings.Join(r.Names(), ", "), nil
	}
}

// handlePerms implements Testable Property 8 / scenario S4 exactly:
// "/perms P L" succeeds iff caller.Perms < P.Perms AND caller.Perms < L
// AND L in [1,99]. P is resolved by name through ctx.ResolvePlayer.
func handlePerms(ctx *Context, args []string) (string, error) {
	if len(args) != 2 {
		return "usage: /perms <player> <level>", nil
	}
	var target *entity.Player
	if args[0] == "." {
		target = ctx.Caller
	} else {
		t, ok := ctx.ResolvePlayer(args[0])
		if !ok {
			return fmt.Sprintf("no such player: %s", args[0]), nil
		}
		target = t
	}
	level, err := strconv.Atoi(args[1])
	if err != nil {
		return "level must be a number", nil
	}

	caller := ctx.Caller
	if level < 1 || level > 99 {
		return "level must be in [1, 99]", nil
	}
	if !(caller.Perms < target.Perms && caller.Perms < int32(level)) {
		return fmt.Sprintf("Can only grant weaker permissions than your own (> %d)", caller.Perms), nil
	}

	target.Perms = int32(level)
	return fmt.Sprintf("%s permissions set to %d", target.Name, level), nil
}
