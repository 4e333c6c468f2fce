package projectionstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/projector/projection"
)

// MongoDBConfig конфигурация подключения к MongoDB-хранилищу коммитов и
// снапшотов проекций. Обобщает MongoDBEventStoreConfig фреймворка
// (framework/eventsourcing/mongodb_store.go) под схему проекций.
type MongoDBConfig struct {
	URI                string
	Database           string
	CommitsCollection  string
	SnapshotCollection string
	MaxPoolSize        uint64
	MinPoolSize        uint64
}

// Validate проверяет корректность конфигурации.
func (c *MongoDBConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("URI cannot be empty")
	}
	if c.Database == "" {
		c.Database = "projector"
	}
	if c.CommitsCollection == "" {
		c.CommitsCollection = "projection_commits"
	}
	if c.SnapshotCollection == "" {
		c.SnapshotCollection = "projection_snapshots"
	}
	return nil
}

// DefaultMongoDBConfig возвращает конфигурацию по умолчанию.
func DefaultMongoDBConfig() MongoDBConfig {
	return MongoDBConfig{
		Database:           "projector",
		CommitsCollection:  "projection_commits",
		SnapshotCollection: "projection_snapshots",
		MaxPoolSize:        100,
		MinPoolSize:        10,
	}
}

type mongoCommitDoc struct {
	VersionName     string    `bson:"version_name"`
	VersionRevision int64     `bson:"version_revision"`
	VersionStatus   string    `bson:"version_status"`
	ProjectionID    string    `bson:"projection_id"`
	Marker          int64     `bson:"marker"`
	EventType       string    `bson:"event_type"`
	EventData       []byte    `bson:"event_data"`
	AggregateRootID string    `bson:"aggregate_root_id"`
	AggregateRev    int64     `bson:"aggregate_revision"`
	EventPosition   int64     `bson:"event_position"`
	OriginTimestamp time.Time `bson:"origin_timestamp"`
	PersistedAt     time.Time `bson:"persisted_at"`
}

// MongoDBStore — реализация C3 (projection.Store) для MongoDB.
type MongoDBStore struct {
	config     MongoDBConfig
	client     *mongo.Client
	collection *mongo.Collection
	codec      EventCodec
}

// NewMongoDBStore подключается к MongoDB, создает индексы и возвращает Store.
func NewMongoDBStore(ctx context.Context, config MongoDBConfig, codec EventCodec) (*MongoDBStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.CommitsCollection)
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "version_name", Value: 1},
				{Key: "version_revision", Value: 1},
				{Key: "projection_id", Value: 1},
				{Key: "marker", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "projection_id", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDBStore{config: config, client: client, collection: collection, codec: codec}, nil
}

// Close отключается от MongoDB.
func (s *MongoDBStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoDBStore) Save(ctx context.Context, commit projection.Commit) error {
	eventType, data, err := s.codec.Encode(commit.Event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	doc := mongoCommitDoc{
		VersionName:     string(commit.Version.Name),
		VersionRevision: commit.Version.Revision,
		VersionStatus:   string(commit.Version.Status),
		ProjectionID:    commit.ProjectionID,
		Marker:          commit.SnapshotMarker,
		EventType:       eventType,
		EventData:       data,
		AggregateRootID: commit.Origin.AggregateRootID,
		AggregateRev:    commit.Origin.AggregateRevision,
		EventPosition:   commit.Origin.EventPosition,
		OriginTimestamp: commit.Origin.Timestamp,
		PersistedAt:     commit.PersistedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting commit: %w", err)
	}
	return nil
}

func (s *MongoDBStore) Load(ctx context.Context, version projection.Version, projectionID string, marker int64) ([]projection.Commit, error) {
	filter := bson.D{
		{Key: "version_name", Value: string(version.Name)},
		{Key: "version_revision", Value: version.Revision},
		{Key: "projection_id", Value: projectionID},
		{Key: "marker", Value: marker},
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("querying commits: %w", err)
	}
	defer cursor.Close(ctx)

	var out []projection.Commit
	for cursor.Next(ctx) {
		var doc mongoCommitDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding commit document: %w", err)
		}
		event, err := s.codec.Decode(doc.EventType, doc.EventData)
		if err != nil {
			return nil, fmt.Errorf("decoding event %s: %w", doc.EventType, err)
		}
		out = append(out, projection.Commit{
			ProjectionID:   projectionID,
			Version:        version,
			Event:          event,
			SnapshotMarker: marker,
			Origin: projection.Origin{
				AggregateRootID:   doc.AggregateRootID,
				AggregateRevision: doc.AggregateRev,
				EventPosition:     doc.EventPosition,
				Timestamp:         doc.OriginTimestamp,
			},
			PersistedAt: doc.PersistedAt,
		})
	}
	return out, cursor.Err()
}

type mongoSnapshotDoc struct {
	ProjectionName  string `bson:"projection_name"`
	ProjectionID    string `bson:"projection_id"`
	VersionRevision int64  `bson:"version_revision"`
	Revision        int64  `bson:"revision"`
	State           []byte `bson:"state"`
}

// MongoDBSnapshotStore — реализация C4 (projection.SnapshotStore) для MongoDB.
type MongoDBSnapshotStore struct {
	config     MongoDBConfig
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBSnapshotStore подключается к MongoDB и возвращает хранилище снапшотов.
func NewMongoDBSnapshotStore(ctx context.Context, config MongoDBConfig) (*MongoDBSnapshotStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.SnapshotCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "projection_name", Value: 1},
			{Key: "projection_id", Value: 1},
			{Key: "version_revision", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDBSnapshotStore{config: config, client: client, collection: collection}, nil
}

// Close отключается от MongoDB.
func (s *MongoDBSnapshotStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoDBSnapshotStore) LoadMeta(ctx context.Context, name projection.Name, projectionID string, version projection.Version) (projection.SnapshotMeta, error) {
	filter := bson.D{
		{Key: "projection_name", Value: string(name)},
		{Key: "projection_id", Value: projectionID},
		{Key: "version_revision", Value: version.Revision},
	}
	var doc mongoSnapshotDoc
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return projection.SnapshotMeta{ProjectionID: projectionID, ProjectionName: name}, nil
		}
		return projection.SnapshotMeta{}, fmt.Errorf("loading snapshot meta: %w", err)
	}
	return projection.SnapshotMeta{ProjectionID: projectionID, ProjectionName: name, Revision: doc.Revision}, nil
}

func (s *MongoDBSnapshotStore) Load(ctx context.Context, name projection.Name, projectionID string, version projection.Version) (projection.Snapshot, error) {
	filter := bson.D{
		{Key: "projection_name", Value: string(name)},
		{Key: "projection_id", Value: projectionID},
		{Key: "version_revision", Value: version.Revision},
	}
	var doc mongoSnapshotDoc
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return projection.NoSnapshot(projectionID, name), nil
		}
		return projection.Snapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return projection.Snapshot{ProjectionID: projectionID, ProjectionName: name, State: doc.State, Revision: doc.Revision}, nil
}

func (s *MongoDBSnapshotStore) Save(ctx context.Context, snapshot projection.Snapshot, version projection.Version) error {
	filter := bson.D{
		{Key: "projection_name", Value: string(snapshot.ProjectionName)},
		{Key: "projection_id", Value: snapshot.ProjectionID},
		{Key: "version_revision", Value: version.Revision},
	}
	update := bson.D{{Key: "$set", Value: mongoSnapshotDoc{
		ProjectionName:  string(snapshot.ProjectionName),
		ProjectionID:    snapshot.ProjectionID,
		VersionRevision: version.Revision,
		Revision:        snapshot.Revision,
		State:           snapshot.State,
	}}}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}
