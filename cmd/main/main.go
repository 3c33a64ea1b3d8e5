package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finlink/src/channel"
	"finlink/src/config"
	"finlink/src/interfaces"
	"finlink/src/logger"
	"finlink/src/models"
	"finlink/src/network"
	"finlink/src/storage"
	"finlink/src/stream"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	userID := flag.String("user", "USR001", "user identity for the push channel")
	message := flag.String("message", "How much should I save each month?", "chat message to stream")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	// Setup components (explicit construction, no singletons)
	nm := network.NewManager(conf.MConfig, appLogger)

	var history interfaces.IHistoryStore
	if conf.Storage.DBPath != "" {
		db := storage.NewHistoryDB(conf.MConfig, logger.NewLogger(conf.MConfig, "HistoryDB"))
		if err := db.Initialize(); err != nil {
			appLogger.Warning("History cache unavailable: %v", err)
		} else {
			defer db.Close()
			if err := db.CleanupOldTurns(); err != nil {
				appLogger.Warning("History cleanup failed: %v", err)
			}
			history = db
		}
	}

	chat := stream.NewStreamClient(conf.MConfig, logger.NewLogger(conf.MConfig, "StreamClient"), nm, history)
	push := channel.NewUpdateChannel(conf.MConfig, logger.NewLogger(conf.MConfig, "UpdateChannel"),
		channel.GorillaDialer{}, channel.RealScheduler{})

	// Connect the push channel and print everything it delivers
	if err := push.Connect(*userID); err != nil {
		appLogger.Warning("Push channel connect failed: %v", err)
	}
	defer push.Disconnect()

	for _, topic := range models.UpdateTopics {
		t := topic
		push.Subscribe(t, func(env models.MUpdateEnvelope) {
			appLogger.Info("[%s] %s", t, string(env.Data))
		})
	}
	push.RequestUpdate(models.TopicPortfolio)

	// Stream one chat exchange to stdout
	snapshot := &models.MFinancialSnapshot{
		NetWorth:        1250000,
		MonthlyIncome:   50000,
		MonthlyExpenses: 30000,
		SavingsRate:     "40",
	}
	chatCtx := models.MChatContext{
		UserID:   *userID,
		Snapshot: snapshot,
		History:  chat.LoadHistory(*userID),
	}

	rs, err := chat.Send(*message, chatCtx)
	if err != nil {
		appLogger.Critical("Send failed: %v", err)
	}

	var full string
	fmt.Printf("> %s\n", *message)
	for fragment := range rs.Fragments() {
		fmt.Print(fragment.Content)
		full += fragment.Content
	}
	fmt.Println()

	if rs.Err() == nil {
		now := time.Now().Unix()
		chat.PersistTurns(*userID, []models.MChatTurn{
			{Role: models.RoleUser, Content: *message, Timestamp: now},
			{Role: models.RoleAssistant, Content: full, Timestamp: now},
		})
	}

	// Keep printing pushed updates until interrupted
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("Listening for pushed updates (Ctrl-C to exit)...")
	<-quit
	appLogger.Info("Shutting down...")
}
