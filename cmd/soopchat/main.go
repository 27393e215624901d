// Package main is the entry point for the soopchat reference CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kelwin/soopchat/internal/buildinfo"
	"github.com/kelwin/soopchat/internal/chat"
	"github.com/kelwin/soopchat/internal/config"
	"github.com/kelwin/soopchat/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	insecure := flag.Bool("insecure", false, "skip TLS verification on the WebSocket dial (development only)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(0)
	}

	switch flag.Arg(0) {
	case "watch":
		os.Exit(runWatch(logger, *configPath, *insecure, flag.Args()[1:]))
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("soopchat - live chat protocol client")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  watch <room_id>   Connect to a room and print chat, donations, and notices")
	fmt.Println("  version           Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Exit codes: 0 normal, 1 resolution failure / not live, 2 I/O failure, 130 interrupted")
}

// runWatch drives a single session against roomID and prints a common
// subset of events (chat, donations, notifications, emoticons, connect,
// join and disconnect) until the session ends or the process is
// interrupted.
func runWatch(logger *slog.Logger, configPath string, insecureFlag bool, args []string) int {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	cfg := config.Default()
	if path, err := config.FindConfig(configPath); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config %s: %v\n", path, err)
			return 2
		}
		cfg = loaded
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", cfg.LogLevel, err)
		return 2
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))

	roomID := cfg.Room.ID
	if len(args) > 0 {
		roomID = args[0]
	}
	if envRoom := os.Getenv("SOOPCHAT_ROOM_ID"); envRoom != "" && roomID == "" {
		roomID = envRoom
	}
	if roomID == "" {
		fmt.Fprintln(os.Stderr, "usage: soopchat watch <room_id>")
		return 1
	}

	insecure := insecureFlag || cfg.InsecureSkipVerify || os.Getenv("SOOPCHAT_INSECURE_SKIP_VERIFY") == "true"

	plain := tui.Plain(!isTerminal(os.Stdout))

	session := chat.NewSession(chat.Config{
		InsecureSkipVerify: insecure,
		Logger:             logger,
		PingInterval:       time.Duration(cfg.PingIntervalSec) * time.Second,
	})

	render := func(evt chat.Event) {
		if line := tui.Line(evt, plain); line != "" {
			fmt.Println(line)
		}
	}

	for _, kind := range []chat.Kind{
		chat.KindConnect, chat.KindEnterChatRoom, chat.KindChat,
		chat.KindNotification, chat.KindTextDonation, chat.KindVideoDonation,
		chat.KindAdBalloonDonation, chat.KindEmoticon, chat.KindDisconnect,
	} {
		session.Subscribe(kind, render)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	interrupted := make(chan struct{})
	go func() {
		<-sigCh
		close(interrupted)
		session.Close()
		cancel()
	}()

	err = session.Run(ctx, roomID)

	select {
	case <-interrupted:
		return 130
	default:
	}

	if err != nil {
		switch err.(type) {
		case *chat.NotLiveError, *chat.ResolveError:
			fmt.Fprintf(os.Stderr, "soopchat: %v\n", err)
			return 1
		default:
			fmt.Fprintf(os.Stderr, "soopchat: %v\n", err)
			return 2
		}
	}

	return 0
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
