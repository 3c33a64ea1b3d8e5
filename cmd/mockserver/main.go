package main

import (
	"flag"
	"time"

	"finlink/src/logger"
	"finlink/src/mockserver"
)

// -----------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	pushInterval := flag.Duration("push-interval", 5*time.Second, "synthetic envelope interval")
	marketHours := flag.Bool("market-hours", false, "gate market envelopes on NYSE trading hours")
	singleDoc := flag.Bool("single-doc", false, "answer /chat with one JSON document instead of an event stream")
	flag.Parse()

	appLogger := logger.NewLogger(nil, "MockServer")

	srv := mockserver.NewServer(mockserver.Options{
		Addr:            *addr,
		WordDelay:       20 * time.Millisecond,
		PushInterval:    *pushInterval,
		MarketHoursOnly: *marketHours,
		SingleDocument:  *singleDoc,
	}, appLogger)

	if err := srv.Start(); err != nil {
		appLogger.Critical("Mock backend failed: %v", err)
	}
}
