package relay

// History keys: rooms and private pairs live in the same log, so the key
// carries a namespace prefix.

func RoomKey(room string) string {
	return "room:" + room
}

// PairKey resolves both directions of a private conversation to the same
// key by sorting the two nicknames.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "pm:" + a + ":" + b
}
