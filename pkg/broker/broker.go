package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
	// Retries is the number of connection attempts, 5 when unset.
	Retries int
	// MaxElapsed bounds the whole connection attempt, 10s when unset.
	MaxElapsed time.Duration
}

func (c Config) Addr() string { return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port) }

// Connect opens an MQTT session with exponential backoff between attempts.
// The session is closed when ctx is done.
func Connect(ctx context.Context, cfg Config, logger *log.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 5
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Addr())
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("broker: connection to %s lost: %v", cfg.Addr(), err)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Printf("broker: connect to %s: %v", cfg.Addr(), token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.Retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Addr(), err)
	}
	logger.Printf("broker: connected to %s as %q", cfg.Addr(), cfg.ClientID)

	go func() {
		<-ctx.Done()
		Close(client)
		logger.Printf("broker: connection to %s closed", cfg.Addr())
	}()
	return client, nil
}

func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}
