package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/config"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/addresscache"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

func main() {
	devices := flag.String("devices", os.Getenv("DEVICES"), "comma separated device ids, e.g. 200,300,400")
	flag.Parse()

	ids, err := addresscache.ParseIDs(*devices)
	if err != nil {
		log.Printf("address-cache: %v", err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatalf("address-cache: config: %v", err)
	}
	log.Printf("address-cache: devices %v from %s", ids, cfg.Server.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := app.NewClient(app.ClientConfig{
		URL:                cfg.Server.URL,
		User:               cfg.Server.User,
		PasswordMD5:        cfg.Server.PasswordMD5,
		Timeout:            cfg.Server.Timeout,
		InsecureSkipVerify: cfg.Server.InsecureSkipVerify,
		Breaker:            app.BreakerConfig{Fails: cfg.Server.BreakerFails, Open: cfg.Server.BreakerOpen},
	})
	if _, err := client.Login(ctx); err != nil {
		log.Fatalf("address-cache: login: %v", err)
	}

	records, err := addresscache.Build(ctx, client, ids, nil)
	if err == nil {
		err = bacnet.WriteBacwiFile(cfg.Collector.AddressCache, records)
	}

	lctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if lerr := client.Logout(lctx); lerr != nil {
		log.Printf("address-cache: logout: %v", lerr)
	}
	if err != nil {
		log.Fatalf("address-cache: %v", err)
	}
	log.Printf("address-cache: wrote %d devices to %s", len(records), cfg.Collector.AddressCache)
}
