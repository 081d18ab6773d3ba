package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/terraincognita07/healthintake/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultDatabase   = "healthDB"
	DefaultCollection = "healthdatas"

	connectTimeout = 10 * time.Second
)

// Connect dials the server and verifies it answers a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

type RecordRepository struct {
	collection *mongo.Collection
}

func NewRecordRepository(client *mongo.Client, database string) *RecordRepository {
	if database == "" {
		database = DefaultDatabase
	}
	return &RecordRepository{collection: client.Database(database).Collection(DefaultCollection)}
}

// EnsureIndexes creates the listing index. Safe to call on every start.
func (repo *RecordRepository) EnsureIndexes(ctx context.Context) error {
	_, err := repo.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
	})
	return err
}

func (repo *RecordRepository) Create(ctx context.Context, record *models.HealthRecord) error {
	_, err := repo.collection.InsertOne(ctx, record)
	return err
}

func (repo *RecordRepository) ListAll(ctx context.Context) ([]models.HealthRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := repo.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, err
	}

	records := make([]models.HealthRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
