package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/config"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/history"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/broker"
)

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func clientConfig(cfg config.Config, logger *log.Logger) app.ClientConfig {
	return app.ClientConfig{
		URL:                cfg.Server.URL,
		User:               cfg.Server.User,
		PasswordMD5:        cfg.Server.PasswordMD5,
		Timeout:            cfg.Server.Timeout,
		InsecureSkipVerify: cfg.Server.InsecureSkipVerify,
		Breaker: app.BreakerConfig{
			Fails:    cfg.Server.BreakerFails,
			Open:     cfg.Server.BreakerOpen,
			Interval: time.Minute,
		},
		Logger: logger,
	}
}

func brokerConfig(cfg config.Config) broker.Config {
	return broker.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID,
	}
}

func historyConfig(cfg config.Config) history.Config {
	return history.Config{
		URL:           cfg.Influx.URL,
		Token:         cfg.Influx.Token,
		Org:           cfg.Influx.Org,
		Bucket:        cfg.Influx.Bucket,
		BatchSize:     50,
		FlushInterval: 1000,
	}
}
