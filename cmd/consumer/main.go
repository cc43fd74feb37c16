package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/trip-booking/internal/config"
	"github.com/example/trip-booking/internal/logging"
	"github.com/example/trip-booking/internal/notify"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agency_consumer_messages_consumed_total",
		Help: "Total agency booking notices consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agency_consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agency_consumer_redis_updates_total",
		Help: "Total bookings stored in redis",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agency_consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger("agency-consumer", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		n, err := decodeNotice(m.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", m.Offset, "error", err)
			continue
		}

		if err := storeBookingWithRetry(ctx, radapter, n, cfg.RetryAttempts, cfg.RetryDelay); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "payment_id", n.PaymentID, "error", err)
			continue
		}
		redisUpdates.Inc()
		logger.Info("agency booking stored", "payment_id", n.PaymentID, "trip_id", n.TripID, "reference", n.BookingReference)
	}
}

func decodeNotice(b []byte) (notify.AgencyNotice, error) {
	var n notify.AgencyNotice
	if err := json.Unmarshal(b, &n); err != nil {
		return n, err
	}
	if n.PaymentID == "" {
		return n, fmt.Errorf("notice without payment id")
	}
	return n, nil
}

// RedisUpdater is the subset of redis operations the consumer needs.
type RedisUpdater interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	SAdd(ctx context.Context, key string, members ...interface{}) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := r.c.HSet(ctx, key, values).Result()
	return err
}

func (r *redisAdapter) SAdd(ctx context.Context, key string, members ...interface{}) error {
	_, err := r.c.SAdd(ctx, key, members...).Result()
	return err
}

func bookingKey(paymentID string) string { return "agency:booking:" + paymentID }

func tripKey(tripID int) string { return "agency:trip:" + strconv.Itoa(tripID) + ":bookings" }

// storeBookingWithRetry writes the booking hash and indexes it by trip,
// retrying each step with a doubling delay.
func storeBookingWithRetry(ctx context.Context, rc RedisUpdater, n notify.AgencyNotice, attempts int, delay time.Duration) error {
	fields := map[string]interface{}{
		"trip_id":           n.TripID,
		"trip_title":        n.TripTitle,
		"full_name":         n.FullName,
		"phone":             n.Phone,
		"email":             n.Email,
		"pickup_point":      n.PickupPoint,
		"ticket_count":      n.TicketCount,
		"total_price":       n.TotalPrice,
		"amount_paid":       n.AmountPaid,
		"remaining_balance": n.RemainingBalance,
		"reference":         n.BookingReference,
		"booked_at":         n.BookedAt.Format(time.RFC3339),
	}
	for i := 0; i < attempts; i++ {
		if err := rc.HSet(ctx, bookingKey(n.PaymentID), fields); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		if err := rc.SAdd(ctx, tripKey(n.TripID), n.PaymentID); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return nil
}

