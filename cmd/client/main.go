package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"

	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/internal/logging"
)

const quitCommand = "/quit"

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	_ = godotenv.Load()
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the connection manager to the console: one goroutine renders
// inbound traffic, the main goroutine reads user input and sends.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logging.FromString(config.LogLevel)

	manager := client.New(client.Config{
		Addr:     config.ServerAddr,
		Nickname: config.Nickname,
	}, log)
	if err := manager.Start(); err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddr, err)
	}
	defer manager.Close()

	color.Greenln(">>> Connected to " + config.ServerAddr + " as " + config.Nickname + " (/quit to exit)")

	go renderInbound(manager)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == quitCommand {
			color.Yellowln("Exiting chat...")
			return exitOK, nil
		}
		if err := manager.Send(text); err != nil {
			color.Redln("not sent: " + err.Error())
		}
	}
	return exitOK, scanner.Err()
}

func renderInbound(manager *client.Manager) {
	for msg := range manager.Inbound() {
		if msg.Sender == domain.ServerName {
			color.Cyanln("[" + domain.ServerName + "] " + msg.Content)
			continue
		}
		at := time.Unix(msg.Timestamp, 0).Format(time.TimeOnly)
		fmt.Printf("[%s] %s: %s\n", at, msg.Sender, msg.Content)
	}
}
