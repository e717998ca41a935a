package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/migrations"
)

type MongoWriter struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewMongoWriter ensures the collection's indexes exist. It does not own
// the database's client.
func NewMongoWriter(ctx context.Context, db *mongo.Database, cfg config.MongoStoreConfig, log logger.Logger) (*MongoWriter, error) {
	if err := migrations.EnsureMetricPointsCollection(ctx, db, cfg.Collection); err != nil {
		return nil, apperrors.ErrStoreWrite.WithCause(err)
	}

	return &MongoWriter{
		collection: db.Collection(cfg.Collection),
		logger:     log,
	}, nil
}

func (w *MongoWriter) Name() string {
	return constants.StoreTypeMongoDB
}

func (w *MongoWriter) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(points))
	for _, p := range points {
		docs = append(docs, p.Record())
	}

	res, err := w.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return apperrors.ErrStoreWrite.WithCause(fmt.Errorf("failed to insert into %s: %w", w.collection.Name(), err))
	}

	w.logger.Debugw("Points written to MongoDB",
		"points", len(res.InsertedIDs),
		"collection", w.collection.Name(),
	)
	return nil
}

func (w *MongoWriter) Close() error {
	return nil
}
