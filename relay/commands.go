package relay

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
)

const defaultHistoryLines = 20

const helpText = `Available commands:
/help              show this list
/rooms             list all rooms
/users             list members of your current room
/create <room>     create a room and join it
/join <room>       join a room (created if missing)
/leave             return to the lobby
/pm <user> <text>  send a private message
/history [n]       last n lines of this room (default 20)
/history @user [n] last n lines of a private conversation`

// commandFunc handles one slash command. The argument is everything after
// the keyword, trimmed. The returned string goes back to the issuer only;
// presence notices are broadcast by the room directory itself.
type commandFunc func(s *Session, args string) string

// Commands interprets slash commands against the registry and the room
// directory. Stateless per call: new behavior is added by extending the
// table, never by wrapping existing handlers.
type Commands struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Directory
	history  contract.HistoryLog

	table map[string]commandFunc
}

func NewCommands(log *slog.Logger, registry *Registry, rooms *Directory, history contract.HistoryLog) *Commands {
	c := &Commands{log: log, registry: registry, rooms: rooms, history: history}
	c.table = map[string]commandFunc{
		"help":    c.help,
		"rooms":   c.listRooms,
		"users":   c.listUsers,
		"create":  c.create,
		"join":    c.join,
		"leave":   c.leave,
		"pm":      c.privateMessage,
		"history": c.tailHistory,
	}
	return c
}

// Execute dispatches one command line (leading slash included). Keywords
// are case-insensitive.
func (c *Commands) Execute(s *Session, line string) string {
	keyword, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	handler, ok := c.table[strings.ToLower(keyword)]
	if !ok {
		return fmt.Sprintf("unknown command %q, try /help", "/"+keyword)
	}
	return handler(s, strings.TrimSpace(args))
}

func (c *Commands) help(*Session, string) string {
	return helpText
}

func (c *Commands) listRooms(*Session, string) string {
	return "Rooms:\n" + strings.Join(c.rooms.Rooms(), "\n")
}

func (c *Commands) listUsers(s *Session, _ string) string {
	room := c.registry.CurrentRoom(s)
	names := lo.FilterMap(c.rooms.Members(room), func(member *Session, _ int) (string, bool) {
		nick := member.Nickname()
		return nick, nick != ""
	})
	sort.Strings(names)
	if len(names) == 0 {
		return "No users in " + room + "."
	}
	return fmt.Sprintf("Users in %s:\n%s", room, strings.Join(names, "\n"))
}

func (c *Commands) create(s *Session, args string) string {
	if args == "" {
		return "usage: /create <room>"
	}
	c.rooms.Join(s, args)
	return fmt.Sprintf("room %s created, you are now in it", args)
}

func (c *Commands) join(s *Session, args string) string {
	if args == "" {
		return "usage: /join <room>"
	}
	c.rooms.Join(s, args)
	return "you joined " + args
}

func (c *Commands) leave(s *Session, _ string) string {
	c.rooms.Leave(s)
	return "you are back in the " + domain.Lobby
}

func (c *Commands) privateMessage(s *Session, args string) string {
	target, text, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(text) == "" {
		return "usage: /pm <user> <text>"
	}
	text = strings.TrimSpace(text)

	recipient, found := c.registry.Lookup(target)
	if !found {
		return fmt.Sprintf("user %q not found or not online", target)
	}

	sender := s.Nickname()
	private := domain.NewMessage(sender, "(private) "+text)
	if recipient != s {
		if err := recipient.Send(private); err != nil {
			c.log.Warn("private delivery failed", "target", target, "error", err)
		}
	}
	c.history.Append(PairKey(sender, target), private.HistoryLine())
	return fmt.Sprintf("(private to %s) %s", target, text)
}

// tailHistory serves both forms: "/history [n]" for the current room and
// "/history @user [n]" for a private conversation.
func (c *Commands) tailHistory(s *Session, args string) string {
	key := RoomKey(c.registry.CurrentRoom(s))
	n := defaultHistoryLines

	if args != "" {
		first, rest, _ := strings.Cut(args, " ")
		if target, isUser := strings.CutPrefix(first, "@"); isUser {
			key = PairKey(s.Nickname(), target)
			first = strings.TrimSpace(rest)
		}
		if first != "" {
			parsed, err := strconv.Atoi(first)
			if err != nil || parsed < 1 {
				return "usage: /history [n] or /history @user [n]"
			}
			n = parsed
		}
	}
	return c.history.Tail(key, n)
}
