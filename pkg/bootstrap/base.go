package bootstrap

import (
	"context"
	"fmt"

	"pokeagent/internal/broker"
	"pokeagent/internal/config"
	"pokeagent/internal/logger"
	"pokeagent/internal/store"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Consumer broker.Consumer
	Store    *store.Resilient
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitBroker(serviceName string) error {
	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Consumer = consumer
	return nil
}

// InitStore builds the metrics-store writer. clients must hold the database
// handle the configured store type needs.
func (b *Base) InitStore(ctx context.Context, clients store.Clients) error {
	w, err := store.New(ctx, b.Config.Store, b.Config.CircuitBreaker, clients, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create %s store: %w", b.Config.Store.Type, err)
	}

	b.Store = w
	b.Logger.Infow("Metrics store ready", "store", w.Name())
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) ShutdownStore() []error {
	var errs []error

	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close error: %w", err))
		}
	}

	return errs
}

// Shutdown closes the consumer before the store so that no acknowledgement
// can follow a store that is already gone.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)
	errs = append(errs, b.ShutdownStore()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
