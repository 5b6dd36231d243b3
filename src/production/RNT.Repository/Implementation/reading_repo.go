package implementation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

// MongoReadingRepository stores the append-only sensor reading log.
type MongoReadingRepository struct {
	collection *mongo.Collection
}

func NewMongoReadingRepository(client *mongo.Client, database, collection string) *MongoReadingRepository {
	return &MongoReadingRepository{
		collection: client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the indexes the threshold queries depend on.
func (r *MongoReadingRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "machine_id", Value: 1}, {Key: "ingested_at", Value: -1}}},
		{Keys: bson.D{{Key: "sensor_type", Value: 1}, {Key: "ingested_at", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoReadingRepository) CreateReading(ctx context.Context, reading rntmodels.SensorReading) error {
	_, err := r.collection.InsertOne(ctx, reading)
	return err
}

func (r *MongoReadingRepository) ValidValuesSince(ctx context.Context, sensorType, machineID string, since time.Time) ([]float64, error) {
	filter := bson.M{
		"sensor_type": sensorType,
		"is_valid":    true,
		"ingested_at": bson.M{"$gte": since},
	}
	if machineID != "" {
		filter["machine_id"] = machineID
	}

	opts := options.Find().SetProjection(bson.M{"value": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	values := make([]float64, 0)
	for cursor.Next(ctx) {
		var doc struct {
			Value float64 `bson:"value"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		values = append(values, doc.Value)
	}
	return values, cursor.Err()
}

func (r *MongoReadingRepository) LatestReadings(ctx context.Context, query interfaces.ReadingQuery) ([]rntmodels.SensorReading, error) {
	filter := bson.M{}
	if query.MachineID != "" {
		filter["machine_id"] = query.MachineID
	}
	if query.SensorType != "" {
		filter["sensor_type"] = query.SensorType
	}
	if !query.Since.IsZero() {
		filter["ingested_at"] = bson.M{"$gte": query.Since}
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ingested_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	readings := make([]rntmodels.SensorReading, 0)
	if err := cursor.All(ctx, &readings); err != nil {
		return nil, err
	}
	return readings, nil
}
