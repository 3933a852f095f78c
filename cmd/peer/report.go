package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/immxrtalbeast/meshconf/internal/mesh"
)

// report remembers what was last printed so only changes reach the console.
type report struct {
	roster   string
	adminID  string
	locked   bool
	poor     bool
	messages int
}

func (r report) print(out io.Writer, snap mesh.Snapshot) report {
	next := report{
		roster:   rosterLine(snap),
		adminID:  snap.AdminID,
		locked:   snap.IsLocked,
		poor:     snap.Network.Poor,
		messages: len(snap.Messages),
	}

	if next.roster != r.roster {
		fmt.Fprintf(out, "participants (%d): %s\n", snap.ParticipantCount, next.roster)
	}
	if next.adminID != r.adminID && snap.IsAdmin {
		fmt.Fprintln(out, "you are the room admin")
	}
	if next.locked != r.locked {
		if next.locked {
			fmt.Fprintln(out, "room locked")
		} else {
			fmt.Fprintln(out, "room unlocked")
		}
	}
	if next.poor != r.poor {
		n := snap.Network
		if n.Poor {
			fmt.Fprintf(out, "poor network: up %s Mbps, down %s Mbps, ping %s ms\n", n.Upload(), n.Download(), n.PingMs())
		} else {
			fmt.Fprintln(out, "network recovered")
		}
	}
	for _, m := range snap.Messages[min(r.messages, len(snap.Messages)):] {
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Nickname, m.Content)
	}
	return next
}

func rosterLine(snap mesh.Snapshot) string {
	names := make([]string, 0, len(snap.Roster))
	for _, p := range snap.Roster {
		name := p.Nickname
		if p.UserID == snap.AdminID {
			name += "*"
		}
		if p.UserID == snap.Self.UserID {
			name += " (you)"
		} else if _, ok := snap.Peer(p.UserID); !ok {
			name += " (connecting)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
