package main

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/repositories"
	"chat-realtime/services"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type Config struct {
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=WARN"`
}

// seed registers (or logs in) a set of accounts, links them with a group and a
// direct conversation, and prints a token per account for the terminal client.
func main() {
	users := flag.String("users", "alice:Alice,bob:Bob,carol:Carol", "Comma separated username:Display Name pairs")
	password := flag.String("password", "Sup3r-Secret-Pass!", "Password shared by every seeded account")
	group := flag.String("group", "General", "Title of the group joining every account, empty to skip")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		log.Fatalf("User repository: %v", err)
	}
	defer userRepository.Close()
	store, err := repositories.NewStore(db, logger)
	if err != nil {
		log.Fatalf("Store: %v", err)
	}
	defer store.Close()

	authService := services.NewAuthService(userRepository, config.JWTSecret, config.AuthTokenDuration)

	var sessions []services.Session
	for _, pair := range strings.Split(*users, ",") {
		username, displayName, _ := strings.Cut(strings.TrimSpace(pair), ":")
		session, err := authService.Register(username, lo.CoalesceOrEmpty(displayName, username), *password)
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			session, err = authService.Login(username, *password)
		}
		if err != nil {
			color.Red.Printf("✗ %s: %v\n", username, err)
			continue
		}
		sessions = append(sessions, session)
	}
	if len(sessions) == 0 {
		os.Exit(1)
	}

	ctx := context.Background()
	ids := lo.Map(sessions, func(s services.Session, _ int) domain.UserID { return s.Identity.ID })
	if *group != "" && len(ids) > 1 {
		conversation, err := store.CreateConversation(ctx, domain.NewConversation{
			Type:      domain.ConversationGroup,
			Title:     *group,
			CreatorID: ids[0],
			MemberIDs: ids[1:],
		})
		if err != nil {
			log.Fatalf("Create group: %v", err)
		}
		color.Green.Printf("✓ group %q #%d with %d members\n", conversation.Title, conversation.ID, len(conversation.MemberIDs))
	}
	if len(ids) > 1 {
		conversation, err := store.CreateConversation(ctx, domain.NewConversation{
			Type:      domain.ConversationDirect,
			CreatorID: ids[0],
			MemberIDs: []domain.UserID{ids[1]},
		})
		switch {
		case errors.Is(err, errors.ErrConversationExists):
			color.Yellow.Println("• direct conversation already exists")
		case err != nil:
			log.Fatalf("Create direct: %v", err)
		default:
			color.Green.Printf("✓ direct #%d between %d and %d\n", conversation.ID, ids[0], ids[1])
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Username", "Display Name", "Token"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, s := range sessions {
		table.Append([]string{fmt.Sprint(s.Identity.ID), s.Identity.Username, s.Identity.DisplayName, s.Token.String()})
	}
	table.Render()
}
