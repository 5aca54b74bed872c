package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/config"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/health"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/history"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/notifier"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/transmitter"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/verifier"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/broker"
)

func main() {
	logger := log.Default()

	cfg, err := config.Load(getenv("GATEWAY_CONFIG", ""))
	if err != nil {
		log.Fatalf("gateway: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Address table ===
	records, err := bacnet.ReadBacwiFile(cfg.Collector.AddressCache)
	if err != nil {
		log.Fatalf("gateway: address table: %v (run the address-cache service first)", err)
	}
	log.Printf("gateway: %d devices in %s", len(records), cfg.Collector.AddressCache)

	// === Server session ===
	client := app.NewClient(clientConfig(cfg, logger))
	if _, err := client.Login(ctx); err != nil {
		log.Fatalf("gateway: login: %v", err)
	}
	defer func() {
		lctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Logout(lctx); err != nil {
			log.Printf("gateway: logout: %v", err)
		}
	}()

	gw, err := app.NewGateway(cfg, client, logger)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	if err := gw.Bootstrap(ctx, records); err != nil {
		log.Fatalf("gateway: bootstrap: %v", err)
	}

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	st := stats.New(reg, logger)

	checks := []health.Check{
		{Name: "server", OK: func() bool { return client.BreakerState() != gobreaker.StateOpen }},
	}

	// === MQTT ===
	var pub broker.IPublisher
	if cfg.Notifier.Enabled {
		mqttClient, err := broker.Connect(ctx, brokerConfig(cfg), logger)
		if err != nil {
			log.Fatalf("gateway: mqtt: %v", err)
		}
		defer broker.Close(mqttClient)
		p := broker.NewPublisher(mqttClient, 1, 5*time.Second)
		pub = p
		checks = append(checks, health.Check{Name: "broker", OK: p.Connected})
	}

	// === InfluxDB ===
	routes := []health.Route{{Pattern: "/groups", Handler: gw.HandleGroups}}
	var hist *history.Writer
	var counters []health.Counter
	if cfg.Influx.URL != "" {
		influx, w := history.Open(historyConfig(cfg), logger)
		defer influx.Close()
		defer w.Flush()
		hist = w
		checks = append(checks, health.Check{Name: "history", OK: func() bool { return w.LastErrorAge() > time.Minute }})
		routes = append(routes, health.Route{
			Pattern: "/history/transitions",
			Handler: history.NewTransitionsHandler(influx, cfg.Influx.Org, cfg.Influx.Bucket),
		})
		counters = append(counters,
			health.Counter{Name: "history_points", Value: func() int64 { return w.Count(history.MeasurementPoint) }},
			health.Counter{Name: "history_transitions", Value: func() int64 { return w.Count(history.MeasurementTransition) }},
		)
	}

	// === Pipeline ===
	tx := transmitter.New(client, transmitter.Config{
		Period:     cfg.Transmitter.Period,
		MaxBatch:   cfg.Transmitter.MaxBatch,
		MaxPending: cfg.Transmitter.MaxPending,
		Disabled:   !cfg.Transmitter.Enabled,
		Stats:      st,
		Logger:     logger,
	})
	nt := notifier.New(gw.Network, pub, notifier.Config{
		QueueSize: cfg.Notifier.QueueSize,
		Disabled:  !cfg.Notifier.Enabled,
		Topic:     cfg.Notifier.Topic,
		DedupTTL:  cfg.Notifier.DedupTTL,
		Stats:     st,
		Logger:    logger,
	})
	counters = append(counters, health.Counter{Name: "open_incidents", Value: func() int64 { return int64(nt.OpenIncidents()) }})
	vcfg := verifier.Config{
		QueueSize:   cfg.Verifier.QueueSize,
		Disabled:    !cfg.Verifier.Enabled,
		Transmitter: tx,
		Notifier:    nt,
		Stats:       st,
		Logger:      logger,
	}
	if hist != nil {
		vcfg.History = hist
	}
	vf := verifier.New(vcfg)

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}
	run(tx.Start)
	run(nt.Start)
	run(vf.Start)
	for _, c := range gw.Collectors(vf, st) {
		run(c.Start)
	}
	run(func(ctx context.Context) { st.Run(ctx, cfg.StatsInterval) })

	// === HTTP ===
	hh := health.New(health.Config{
		Network:  gw.Network,
		Stats:    st,
		Gatherer: reg,
		Checks:   checks,
		Counters: counters,
		Routes:   routes,
		Logger:   logger,
	})
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           hh.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("gateway: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gateway: http server error: %v", err)
		}
	}()

	// === gRPC health ===
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		log.Fatalf("gateway: grpc listen: %v", err)
	}
	gs := grpc.NewServer()
	hsrv := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hsrv)
	run(func(ctx context.Context) { hh.Watch(ctx, hsrv, 5*time.Second) })
	go func() {
		log.Printf("gateway: gRPC health listening on :%d", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			log.Printf("gateway: grpc server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("gateway: shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	gs.GracefulStop()
	wg.Wait()
	tx.Flush(shCtx)
	log.Printf("gateway: %d updates left unsent", tx.Pending())
}
