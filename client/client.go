package main

import (
	"bufio"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/infrastructure/ws"
	"chat-realtime/internal/json"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	Token     string `envconfig:"CHAT_TOKEN" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"WARN"`
	Colours   bool   `envconfig:"CHAT_COLOURS" default:"true"`
}

const usage = `commands:
  /join <conversation>            /leave <conversation>
  /send <conversation> <text>     /edit <message> <text>
  /delete <message>               /read <message>
  /typing <conversation>          /stop <conversation>
  /direct <user>                  /group <title> <user,user...>
  /online                         /quit`

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run dials the websocket endpoint, prints every inbound event and turns
// slash commands read from stdin into intents.
func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+config.Token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, header)
	if err != nil {
		if resp != nil {
			return exitRuntime, fmt.Errorf("could not connect to %s (%s): %w", config.ServerURL, resp.Status, err)
		}
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	color.Green.Printf(">>> Connected to %s (type /help)\n", config.ServerURL)

	closed := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				closed <- err
				return
			}
			printFrame(raw)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-closed:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				color.Yellow.Println("Server closed the connection")
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("read: %w", err)
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return exitOK, nil
			}
			frame, err := parseLine(line)
			if err != nil {
				color.Red.Println(err)
				continue
			}
			if frame == nil {
				continue
			}
			raw, err := json.Marshal(frame)
			if err != nil {
				return exitRuntime, err
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return exitRuntime, fmt.Errorf("write: %w", err)
			}
		}
	}
}

// parseLine maps one slash command to its frame. A nil frame means nothing to send.
func parseLine(line string) (*ws.Frame, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	rest := func(from int) string {
		if len(fields) <= from {
			return ""
		}
		return strings.Join(fields[from:], " ")
	}
	id := func(i int) (int64, error) {
		if len(fields) <= i {
			return 0, fmt.Errorf("%s: missing argument, see /help", fields[0])
		}
		return strconv.ParseInt(fields[i], 10, 64)
	}

	var intent string
	var payload any
	switch fields[0] {
	case "/help":
		fmt.Println(usage)
		return nil, nil
	case "/online":
		intent = domain.IntentGetOnlineUsers
	case "/join", "/leave", "/typing", "/stop":
		conversationID, err := id(1)
		if err != nil {
			return nil, err
		}
		intent = map[string]string{
			"/join":   domain.IntentJoinConversation,
			"/leave":  domain.IntentLeaveConversation,
			"/typing": domain.IntentTypingStart,
			"/stop":   domain.IntentTypingStop,
		}[fields[0]]
		payload = domain.JoinConversation{ConversationID: domain.ConversationID(conversationID)}
	case "/send":
		conversationID, err := id(1)
		if err != nil {
			return nil, err
		}
		intent = domain.IntentSendMessage
		payload = domain.SendMessage{ConversationID: domain.ConversationID(conversationID), Content: rest(2), ContentType: domain.ContentText}
	case "/edit":
		messageID, err := id(1)
		if err != nil {
			return nil, err
		}
		intent = domain.IntentEditMessage
		payload = domain.EditMessage{MessageID: domain.MessageID(messageID), Content: rest(2)}
	case "/delete", "/read":
		messageID, err := id(1)
		if err != nil {
			return nil, err
		}
		intent = lo.Ternary(fields[0] == "/delete", domain.IntentDeleteMessage, domain.IntentMarkMessageRead)
		payload = domain.DeleteMessage{MessageID: domain.MessageID(messageID)}
	case "/direct":
		userID, err := id(1)
		if err != nil {
			return nil, err
		}
		intent = domain.IntentCreateConversation
		payload = domain.CreateConversation{Type: domain.ConversationDirect, MemberIDs: []domain.UserID{domain.UserID(userID)}}
	case "/group":
		if len(fields) < 3 {
			return nil, fmt.Errorf("/group: usage /group <title> <user,user...>")
		}
		var members []domain.UserID
		for _, s := range strings.Split(fields[2], ",") {
			userID, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("/group: %w", err)
			}
			members = append(members, domain.UserID(userID))
		}
		intent = domain.IntentCreateConversation
		payload = domain.CreateConversation{Type: domain.ConversationGroup, Title: fields[1], MemberIDs: members}
	default:
		return nil, fmt.Errorf("unknown command %q, see /help", fields[0])
	}

	frame := &ws.Frame{Event: intent}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Data = data
	}
	return frame, nil
}

func printFrame(raw []byte) {
	var frame ws.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		color.Red.Printf("unreadable frame: %s\n", raw)
		return
	}
	style := color.Cyan
	switch frame.Event {
	case event.NameError:
		style = color.Red
	case event.NameNewMessage, event.NameMessageEdited, event.NameMessageDeleted:
		style = color.Green
	case event.NameUserOnline, event.NameUserOffline, event.NameUserTyping, event.NameUserStopTyping:
		style = color.Gray
	}
	style.Printf("[%s] ", frame.Event)
	fmt.Println(string(frame.Data))
}
