package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/immxrtalbeast/meshconf/internal/mesh"
)

// controller is the part of mesh.Session the console drives.
type controller interface {
	SendChat(ctx context.Context, content string) error
	SetNickname(ctx context.Context, nickname string) error
	Kick(ctx context.Context, targetID string) error
	Ban(ctx context.Context, targetID string) error
	RemoteMute(ctx context.Context, targetID string) error
	RemoteVideoOff(ctx context.Context, targetID string) error
	SetLocked(ctx context.Context, locked bool) error
	StartCamera(ctx context.Context, preset string, cinema bool) error
	StopCamera(ctx context.Context) error
	StartScreenShare(ctx context.Context, preset string) error
	StopScreenShare(ctx context.Context) error
	ToggleAudio(ctx context.Context) (bool, error)
	ToggleVideo(ctx context.Context) (bool, error)
}

var (
	errUnknownCommand = errors.New("unknown command")
	errMissingArg     = errors.New("missing argument")
	errQuit           = errors.New("quit")
)

const consoleHelp = `/kick ID  /ban ID  /mute ID  /video-off ID  /lock  /unlock
/nick NAME  /camera PRESET [cinema]  /camera-off  /screen PRESET  /screen-off
/mic  /cam  /quit  (anything else is sent as chat)`

type command struct {
	name string
	args []string
}

// parseLine splits a console line. Lines without a leading slash are chat.
func parseLine(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, false
	}
	if !strings.HasPrefix(line, "/") {
		return command{name: "say", args: []string{line}}, true
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return command{}, false
	}
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

func (c command) arg() (string, error) {
	if len(c.args) == 0 {
		return "", fmt.Errorf("/%s: %w", c.name, errMissingArg)
	}
	return c.args[0], nil
}

// run applies the command and returns a short status line for the console.
func (c command) run(ctx context.Context, s controller) (string, error) {
	switch c.name {
	case "say":
		return "", s.SendChat(ctx, c.args[0])
	case "help":
		return consoleHelp, nil
	case "quit", "leave":
		return "", errQuit
	case "lock", "unlock":
		locked := c.name == "lock"
		if err := s.SetLocked(ctx, locked); err != nil {
			return "", err
		}
		return "room " + c.name + "ed", nil
	case "mic":
		muted, err := s.ToggleAudio(ctx)
		return onOff("microphone", !muted), err
	case "cam":
		off, err := s.ToggleVideo(ctx)
		return onOff("camera", !off), err
	case "camera-off":
		return "camera stopped", s.StopCamera(ctx)
	case "screen-off":
		return "screen share stopped", s.StopScreenShare(ctx)
	}

	arg, err := c.arg()
	if err != nil {
		switch c.name {
		case "kick", "ban", "mute", "video-off", "nick", "camera", "screen":
			return "", err
		}
		return "", fmt.Errorf("/%s: %w", c.name, errUnknownCommand)
	}

	switch c.name {
	case "kick":
		return "kicked " + arg, s.Kick(ctx, arg)
	case "ban":
		return "banned " + arg, s.Ban(ctx, arg)
	case "mute":
		return "muted " + arg, s.RemoteMute(ctx, arg)
	case "video-off":
		return "turned off video of " + arg, s.RemoteVideoOff(ctx, arg)
	case "nick":
		name := strings.Join(c.args, " ")
		return "nickname set to " + name, s.SetNickname(ctx, name)
	case "camera":
		cinema := len(c.args) > 1 && c.args[1] == "cinema"
		return "camera started at " + arg, s.StartCamera(ctx, arg, cinema)
	case "screen":
		return "screen share started at " + arg, s.StartScreenShare(ctx, arg)
	default:
		return "", fmt.Errorf("/%s: %w", c.name, errUnknownCommand)
	}
}

func onOff(what string, on bool) string {
	if on {
		return what + " on"
	}
	return what + " off"
}

// lockWhenAdmin locks the room once snap shows this peer as the elected admin. The admin is only
// known after the first roster arrives, so it reports whether the lock is still pending.
func lockWhenAdmin(ctx context.Context, s controller, snap mesh.Snapshot) (bool, error) {
	if !snap.IsAdmin {
		return true, nil
	}
	if snap.IsLocked {
		return false, nil
	}
	return false, s.SetLocked(ctx, true)
}
