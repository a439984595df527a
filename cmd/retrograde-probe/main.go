package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/victorivanov/retrograde/auth"
	"github.com/victorivanov/retrograde/client"
	"github.com/victorivanov/retrograde/config"
	"github.com/victorivanov/retrograde/event"
	"github.com/victorivanov/retrograde/permission"
	"github.com/victorivanov/retrograde/reason"
	"github.com/victorivanov/retrograde/snowflake"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "token":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: retrograde-probe token")
			fmt.Println()
			fmt.Println("Decode the access token and print its user ID and expiry.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  RETROGRADE_TOKEN  Access token (required)")
			return
		}
		os.Exit(runToken())
	case "perms":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: retrograde-probe perms <guild-id> <channel-id> <user-id>")
			fmt.Println()
			fmt.Println("Fetch guild, channel, and member, then print the user's effective")
			fmt.Println("permissions in that channel.")
			return
		}
		os.Exit(runPerms(os.Args[2:]))
	case "send":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: retrograde-probe send <channel-id> <content> [reason]")
			fmt.Println()
			fmt.Println("Send a message. The optional reason lands in the audit log.")
			return
		}
		os.Exit(runSend(os.Args[2:]))
	case "listen":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: retrograde-probe listen")
			fmt.Println()
			fmt.Println("Connect to the gateway and print dispatched events until interrupted.")
			return
		}
		os.Exit(runListen())
	case "version":
		fmt.Printf("retrograde-probe %s\n", version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: retrograde-probe <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  token    Decode the access token")
	fmt.Println("  perms    Resolve a user's effective permissions in a channel")
	fmt.Println("  send     Send a message to a channel")
	fmt.Println("  listen   Print gateway events as they arrive")
	fmt.Println("  version  Print version info")
	fmt.Println()
	fmt.Println("Run 'retrograde-probe <command> --help' for details on a command.")
}

func hasFlag(flag string, args []string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func parseID(s, what string) (snowflake.ID, bool) {
	id, err := snowflake.Parse(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: bad %s %q: %v\n", what, s, err)
		return 0, false
	}
	return id, true
}

// --- token ---

func runToken() int {
	raw := os.Getenv("RETROGRADE_TOKEN")
	if raw == "" {
		fmt.Fprintln(os.Stderr, "error: RETROGRADE_TOKEN environment variable is required")
		return 1
	}
	tok, err := auth.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("user id: %d\n", tok.UserID)
	if tok.Expiry.IsZero() {
		fmt.Println("expiry:  none")
	} else {
		fmt.Printf("expiry:  %s\n", tok.Expiry.Format(time.RFC3339))
	}
	if err := tok.Check(time.Now()); err != nil {
		fmt.Printf("status:  %v\n", err)
	} else {
		fmt.Println("status:  valid")
	}
	return 0
}

// --- perms ---

func runPerms(args []string) int {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "error: perms requires <guild-id> <channel-id> <user-id>")
		return 1
	}
	guildID, ok := parseID(args[0], "guild id")
	if !ok {
		return 1
	}
	channelID, ok := parseID(args[1], "channel id")
	if !ok {
		return 1
	}
	userID, ok := parseID(args[2], "user id")
	if !ok {
		return 1
	}

	s, err := client.New(config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	guild, err := s.Guild(ctx, guildID).Get(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: fetching guild: %v\n", err)
		return 1
	}
	channel, err := s.Channel(ctx, channelID).Get(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: fetching channel: %v\n", err)
		return 1
	}
	member, err := s.Member(ctx, guildID, userID).Get(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: fetching member: %v\n", err)
		return 1
	}

	effective, err := permission.EffectiveInChannel(guild, channel, member)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("effective: 0x%x\n", effective)
	fmt.Printf("names:     %s\n", permission.Names(effective))
	return 0
}

// --- send ---

func runSend(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "error: send requires <channel-id> <content>")
		return 1
	}
	channelID, ok := parseID(args[0], "channel id")
	if !ok {
		return 1
	}

	s, err := client.New(config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if len(args) >= 3 {
		ctx = reason.With(ctx, args[2])
	}

	msg, err := s.SendMessage(ctx, channelID, args[1]).Get(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("sent message %s to channel %s\n", msg.ID, msg.ChannelID)
	return 0
}

// --- listen ---

func runListen() int {
	s, err := client.New(config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer s.Close()

	s.Subscribe(func(evt any) {
		switch e := evt.(type) {
		case event.Ready:
			fmt.Printf("ready: session %s, user %d, %d guilds\n", e.SessionID, e.UserID, len(e.Guilds))
		case event.MessageCreate:
			fmt.Printf("message %s in channel %s: %s\n", e.Message.ID, e.Message.ChannelID, e.Message.Content)
		case event.Raw:
			fmt.Printf("event %s\n", e.Event)
		default:
			fmt.Printf("event %T\n", e)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ready, err := s.Open(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connecting gateway: %v\n", err)
		return 1
	}
	fmt.Printf("connected as user %d, listening (ctrl-c to stop)\n", ready.UserID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	fmt.Println("shutting down")
	return 0
}
