package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/youthsafe/guardian/internal/config"
	"github.com/youthsafe/guardian/internal/db"
	"github.com/youthsafe/guardian/internal/email"
	"github.com/youthsafe/guardian/internal/monitor"
	"github.com/youthsafe/guardian/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	repo := monitor.NewRepo(gdb, cfg.DBTimeout)
	svc := monitor.NewService(repo, monitor.NewScanAllocator(repo))

	smtp := email.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		User:       cfg.SMTPUser,
		Pass:       cfg.SMTPPass,
		From:       cfg.SMTPFrom,
		SenderName: cfg.SMTPSenderName,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("notification worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.AlertMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.RiskyEventID == 0 {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := notifyAlert(ctx, cfg, svc, repo, smtp, m.RiskyEventID); err != nil {
					log.Printf("worker=%d alert %d failed cost=%s err=%v", workerID, m.RiskyEventID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed risky_event_id=%d err=%v", workerID, m.RiskyEventID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// notifyAlert loads the enriched risky event and mails the configured parent
// address. Events that no longer resolve, or runs without a recipient
// configured, are acked without a send.
func notifyAlert(ctx context.Context, cfg config.Config, svc *monitor.Service, repo *monitor.Repo, smtp email.SMTPConfig, riskyEventID int) error {
	detail, err := svc.GetRiskyEventByID(ctx, riskyEventID)
	if err != nil {
		return err
	}
	if detail == nil {
		log.Printf("risky_event_id=%d no longer resolvable, skipping", riskyEventID)
		return nil
	}

	if cfg.AlertEmailTo == "" {
		log.Printf("ALERT_EMAIL_TO not set, skipping mail for risky_event_id=%d", riskyEventID)
		return nil
	}

	ev, err := repo.GetRiskyEvent(ctx, riskyEventID)
	if err != nil {
		return err
	}
	names, err := repo.Usernames(ctx, []int{ev.ChildUserID})
	if err != nil {
		return err
	}
	childName := names[ev.ChildUserID]
	if childName == "" {
		childName = "your child"
	}

	subject, body := email.RiskAlertMail(childName, detail.RiskLevel, cfg.DashboardURL)
	return email.SendText(smtp, cfg.AlertEmailTo, subject, body)
}
