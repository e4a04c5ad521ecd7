package main

import (
	"context"
	"log"
	"time"

	"github.com/youthsafe/guardian/internal/config"
	"github.com/youthsafe/guardian/internal/db"
	"github.com/youthsafe/guardian/internal/httpapi"
	"github.com/youthsafe/guardian/internal/store/rabbitmq"
	"github.com/youthsafe/guardian/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var rds *redisstore.Store
	if cfg.IDAllocator == "redis" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		cancel()
	}

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		// notification queue is best-effort; ingestion still works without it
		log.Printf("rabbit unavailable, alert notifications disabled: %v", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, pub)

	log.Printf("server listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
