package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMetricPointsCollection creates the indexes used to query points by
// class and time. The collection itself is created on first insert.
func EnsureMetricPointsCollection(ctx context.Context, db *mongo.Database, name string) error {
	collection := db.Collection(name)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "class_name", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName(fmt.Sprintf("idx_%s_class_timestamp", name)),
		},
		{
			Keys:    bson.D{{Key: "labels.domain", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName(fmt.Sprintf("idx_%s_domain_timestamp", name)),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", name, err)
	}

	return nil
}
