package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/mesh"
	"github.com/immxrtalbeast/meshconf/internal/profile"
	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/immxrtalbeast/meshconf/internal/signaling"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
	"github.com/spf13/cobra"
)

var (
	flagNickname string
	flagCamera   string
	flagScreen   string
	flagCinema   bool
	flagLock     bool
)

var joinCmd = &cobra.Command{
	Use:   "join ROOM",
	Short: "Join a room and stay until interrupted",
	Long: `Join a room, connect to every participant and print roster, chat and network changes.

Examples:
  meshpeer join standup
  meshpeer join standup --nickname Teolojik --lock
  meshpeer join standup --camera 1080p --cinema`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd.Context(), args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagNickname, "nickname", "n", "", "display name, stored in the profile")
	joinCmd.Flags().StringVar(&flagCamera, "camera", "", "publish a camera at this preset (720p, 1080p, 1440p)")
	joinCmd.Flags().StringVar(&flagScreen, "screen", "", "publish a screen share at this preset (1080p, 1440p, 4k)")
	joinCmd.Flags().BoolVar(&flagCinema, "cinema", false, "request unprocessed stereo microphone audio")
	joinCmd.Flags().BoolVar(&flagLock, "lock", false, "lock the room after joining (admin only)")
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(ctx context.Context, roomID string, in io.Reader, out io.Writer) error {
	const op = "cmd.peer.join"

	if !domain.ValidRoomID(roomID) {
		return fmt.Errorf("invalid room id %q", roomID)
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log = log.With(slog.String("op", op), slog.String("room_id", roomID))

	store := profile.NewStore(cfg.Profile.Path)
	identity, err := store.Identity(flagNickname)
	if err != nil {
		return err
	}
	factory, err := rtc.NewPionFactory(cfg.WebRTC, log)
	if err != nil {
		return err
	}
	api := signaling.NewAPI(cfg.Session.APIURL, nil)

	reasons := make(chan string, 1)
	opts := mesh.OptionsFromConfig(cfg.Session)
	opts.RoomID = roomID
	opts.Identity = identity
	opts.Transport = signaling.NewClient(cfg.Session.RelayURL, log)
	opts.Factory = factory
	opts.Rooms = api
	opts.Chat = api
	opts.Bans = store
	opts.Devices = rtc.NullDevices{}
	opts.Navigator = mesh.NavigatorFunc(func(reason string) {
		select {
		case reasons <- reason:
		default:
		}
	})
	opts.Log = log

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := mesh.New(opts)
	defer session.Wait()

	if err := session.Join(ctx); err != nil {
		_ = session.Leave(context.Background())
		if errors.Is(err, mesh.ErrBanned) {
			return fmt.Errorf("you are banned from %q (meshpeer unban %s clears the marker)", roomID, roomID)
		}
		return err
	}
	log.Info("joined", slog.String("user_id", identity.UserID), slog.String("nickname", identity.Nickname))
	fmt.Fprintf(out, "joined %s as %s, /help lists commands\n", roomID, identity.Nickname)

	if flagCamera != "" {
		if err := session.StartCamera(ctx, flagCamera, flagCinema); err != nil {
			log.Warn("camera not started", sl.Err(err))
		}
	}
	if flagScreen != "" {
		if err := session.StartScreenShare(ctx, flagScreen); err != nil {
			log.Warn("screen share not started", sl.Err(err))
		}
	}

	lines := make(chan string)
	go readLines(ctx, in, lines)

	var last report
	lockPending := flagLock
	for {
		select {
		case <-ctx.Done():
			return session.Leave(context.Background())
		case <-session.Done():
			select {
			case reason := <-reasons:
				return fmt.Errorf("removed from %s: %s", roomID, reason)
			default:
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			cmd, ok := parseLine(line)
			if !ok {
				continue
			}
			status, err := cmd.run(ctx, session)
			switch {
			case errors.Is(err, errQuit):
				return session.Leave(context.Background())
			case err != nil:
				fmt.Fprintln(out, "!", err)
			case status != "":
				fmt.Fprintln(out, status)
			}
			if err == nil && cmd.name == "nick" {
				if err := store.SetNickname(strings.Join(cmd.args, " ")); err != nil {
					log.Warn("nickname not saved", sl.Err(err))
				}
			}
		case <-session.Changes():
			snap, err := session.Snapshot(ctx)
			if err != nil {
				continue
			}
			last = last.print(out, snap)
			if lockPending {
				lockPending, err = lockWhenAdmin(ctx, session, snap)
				if err != nil {
					log.Warn("room not locked", sl.Err(err))
				}
			}
		}
	}
}

func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}
