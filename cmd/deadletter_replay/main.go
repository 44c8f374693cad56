package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monay-auth/internal/bootstrap"
	"monay-auth/internal/config"
	"monay-auth/internal/notify"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// deadletter_replay reemite los mensajes que el Dispatcher del API publico en el topic de
// dead-letter. El dead-letter no trae el codigo: el AccountService emite uno nuevo. Los envios
// que vuelven a fallar se re-publican en el mismo topic.
func main() {
	maxMessages := flag.Int("max", 0, "maximo de mensajes a procesar (0 = hasta cancelar)")
	timeout := flag.Duration("timeout", 0, "tiempo maximo de ejecucion (0 = sin limite)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer app.Close()

	replayer := notify.NewKafkaReplayer(cfg.KafkaBrokers, cfg.KafkaDeadLetter, cfg.KafkaReplayGroup, app.Accounts, logger)
	defer replayer.Close()

	processed, err := replayer.Run(ctx, *maxMessages)
	if err != nil {
		logger.Error("replay stopped", zap.Error(err), zap.Int("processed", processed))
	} else {
		logger.Info("replay finished", zap.Int("processed", processed))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Dispatcher.Close(drainCtx); err != nil {
		logger.Warn("dispatcher drain incomplete", zap.Error(err))
	}
}
