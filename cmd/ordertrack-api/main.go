// README: Entry point; loads config, wires the tracking service, notifiers and streams, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ordertrack/internal/config"
	httptransport "ordertrack/internal/http"
	"ordertrack/internal/infra"
	"ordertrack/internal/logger"
	"ordertrack/internal/maps"
	"ordertrack/internal/metrics"
	"ordertrack/internal/modules/broadcast"
	"ordertrack/internal/modules/notify"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/modules/stream"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", map[string]interface{}{"error": err.Error()})
	}
	logger.SetLevel(cfg.Log.Level)
	metrics.Register()
	log := logger.New("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithField("error", err.Error()).Fatal("ordertrack api stopped")
	}
	log.Info("shut down")
}

// run wires every component and serves until ctx is done. Resources are released by defers,
// so it returns errors instead of exiting.
func run(ctx context.Context, cfg config.Config, log *logrus.Entry) error {
	store, events, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	table := order.DefaultTable()
	if cfg.Transitions.File != "" {
		if table, err = order.LoadTable(cfg.Transitions.File); err != nil {
			return fmt.Errorf("load transition rules: %w", err)
		}
	}

	hub := broadcast.New(cfg.Stream.BufferSize, logger.New("broadcast"))
	var publisher order.Publisher = hub
	if cfg.Redis.RelayEnabled {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		relay := broadcast.NewRelay(hub, rdb, cfg.Redis.RelayChannel, logger.New("relay"))
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithField("error", err.Error()).Error("relay stopped")
			}
		}()
		publisher = relay
	}

	var channels []notify.Channel
	if cfg.SendGrid.APIKey != "" && cfg.SendGrid.From != "" {
		client := notify.NewSendGridClient(cfg.SendGrid.APIKey, cfg.SendGrid.FromName)
		channels = append(channels, notify.Channel{Name: "email", Notifier: notify.NewEmailNotifier(client, cfg.SendGrid.From)})
	}
	if cfg.Firebase.ProjectID != "" {
		fcm, err := infra.NewFirebaseMessaging(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		channels = append(channels, notify.Channel{Name: "push", Notifier: notify.NewPushNotifier(fcm)})
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer writer.Close()
		channels = append(channels, notify.Channel{Name: "queue", Notifier: notify.NewQueueNotifier(writer)})
	}
	notifier := notify.NewMulti(logger.New("notify"), channels...)

	deps := order.Deps{
		Store:     store,
		Events:    events,
		Table:     table,
		Publisher: publisher,
		Logger:    logger.New("order"),
	}
	if notifier.Len() > 0 {
		deps.Notifier = notifier
	}
	orderSvc := order.NewService(deps)
	// runs after the server has drained, so no request can still start a notification
	defer orderSvc.Wait()

	streams := stream.NewManager(hub, stream.Config{
		HeartbeatInterval:   cfg.Stream.HeartbeatInterval(),
		MaxMissedHeartbeats: cfg.Stream.MaxMissedHeartbeats,
		RetryHint:           cfg.Stream.RetryHint(),
	}, logger.New("stream"))

	serverDeps := httptransport.ServerDeps{
		Order:   orderSvc,
		Streams: streams,
		Logger:  logger.New("http"),
	}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.KitchenOrigin)
		if err != nil {
			return err
		}
		serverDeps.ETA = routes
	}
	handler := httptransport.NewServer(serverDeps)

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
	}
	log.WithFields(logrus.Fields{
		"addr":      ln.Addr().String(),
		"store":     cfg.Store.Driver,
		"relay":     cfg.Redis.RelayEnabled,
		"notifiers": notifier.Len(),
	}).Info("ordertrack api listening")

	server := &http.Server{Handler: handler.Routes()}
	// open streams would hold Shutdown until its timeout, so they are ended first
	return serve(ctx, server, ln, hub.Close)
}

// serve runs srv on ln until ctx is done, then calls beforeShutdown and shuts srv down,
// returning only once in-flight requests have finished.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, beforeShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	if beforeShutdown != nil {
		beforeShutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (order.OrderStore, order.EventLog, func(), error) {
	if cfg.Store.Driver != config.StorePostgres {
		mem := order.NewMemoryStore()
		return mem, mem, func() {}, nil
	}
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	pg := order.NewStore(pool)
	return pg, pg, pool.Close, nil
}
