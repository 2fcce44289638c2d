package relay

import (
	"fmt"
	"log/slog"
	"strings"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Router decides what one inbound envelope is: the session's first contact,
// a slash command, or a plain room message. The pipeline is fixed:
// router -> command table -> room directory.
type Router struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Directory
	commands *Commands
	history  contract.HistoryLog
}

func NewRouter(log *slog.Logger, registry *Registry, rooms *Directory, commands *Commands, history contract.HistoryLog) *Router {
	return &Router{log: log, registry: registry, rooms: rooms, commands: commands, history: history}
}

// Dispatch routes one decoded envelope from its originating session.
func (r *Router) Dispatch(s *Session, m domain.Message) {
	if s.Nickname() == "" {
		bound, fresh := r.registry.RegisterIfAbsent(s, m.Sender)
		if fresh {
			r.welcome(s, bound, m.Sender)
		}
	}

	if strings.HasPrefix(m.Content, "/") {
		if resp := r.commands.Execute(s, m.Content); resp != "" {
			r.reply(s, resp)
		}
		return
	}

	room := r.registry.CurrentRoom(s)
	r.rooms.Broadcast(room, m, s)
	r.history.Append(RoomKey(room), m.HistoryLine())
}

func (r *Router) welcome(s *Session, bound, requested string) {
	if requested != "" && bound != requested {
		r.reply(s, fmt.Sprintf("nickname %q is taken, you are %q", requested, bound))
	}
	r.reply(s, fmt.Sprintf("welcome %s! You are in the %s. Type /help for commands.", bound, domain.Lobby))
}

func (r *Router) reply(s *Session, content string) {
	if err := s.Send(domain.ServerNotice(content)); err != nil {
		r.log.Warn("reply failed", "nickname", s.Nickname(), "error", err)
	}
}
