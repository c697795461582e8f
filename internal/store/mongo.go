package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ppiankov/stancedb/internal/model"
)

// Collection names per variant
const (
	CollectionPersons       = "celebrities"
	CollectionOrganizations = "companies"
)

const mongoDisconnectTimeout = 10 * time.Second

// MongoStore keeps each variant in its own collection with a unique index on nameKey.
type MongoStore struct {
	client *mongo.Client
	colls  map[model.Variant]*mongo.Collection
}

// mongoDocument is the stored shape. The *Key fields are case-folded copies
// kept so lookups and substring search never depend on collation.
type mongoDocument struct {
	model.StanceRecord `bson:",inline"`

	NameKey     string `bson:"nameKey"`
	CategoryKey string `bson:"categoryKey"`
	SourceCount int    `bson:"sourceCount"`
}

// NewMongoStore connects to uri and ensures the unique indexes exist
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("store: mongo_uri is required for the mongo driver")
	}
	if database == "" {
		database = "stancedb"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		colls: map[model.Variant]*mongo.Collection{
			model.VariantPerson:       db.Collection(CollectionPersons),
			model.VariantOrganization: db.Collection(CollectionOrganizations),
		},
	}

	for variant, coll := range s.colls {
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "nameKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "stance", Value: 1}}},
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("create %s indexes: %w", variant, err)
		}
	}

	return s, nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) collection(variant model.Variant) (*mongo.Collection, error) {
	coll, ok := s.colls[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidVariant, variant)
	}
	return coll, nil
}

// FindByName returns the record of the given variant whose name key matches
func (s *MongoStore) FindByName(ctx context.Context, variant model.Variant, key string) (*model.StanceRecord, error) {
	coll, err := s.collection(variant)
	if err != nil {
		return nil, err
	}

	var doc mongoDocument
	err = coll.FindOne(ctx, bson.D{{Key: "nameKey", Value: model.NameKey(key)}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", variant, key, err)
	}

	return doc.record(variant), nil
}

// Search returns records of one variant matching q
func (s *MongoStore) Search(ctx context.Context, variant model.Variant, q Query) ([]model.StanceRecord, error) {
	coll, err := s.collection(variant)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(mongoSort(q.Order))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", variant, err)
	}

	var docs []mongoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", variant, err)
	}

	records := make([]model.StanceRecord, 0, len(docs))
	for i := range docs {
		records = append(records, *docs[i].record(variant))
	}
	return records, nil
}

// Insert upserts with $setOnInsert so an existing record is never modified
func (s *MongoStore) Insert(ctx context.Context, rec *model.StanceRecord) (*model.StanceRecord, bool, error) {
	if err := rec.Validate(); err != nil {
		return nil, false, err
	}

	coll, err := s.collection(rec.Variant)
	if err != nil {
		return nil, false, err
	}

	stored := prepareInsert(rec)
	doc := newMongoDocument(stored)
	filter := bson.D{{Key: "nameKey", Value: doc.NameKey}}

	res, err := coll.UpdateOne(ctx, filter,
		bson.D{{Key: "$setOnInsert", Value: doc}},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("insert %s %q: %w", stored.Variant, stored.Name, err)
	}

	// A duplicate key error means a concurrent upsert won the race
	if err == nil && res.UpsertedCount == 1 {
		return stored, true, nil
	}

	existing, err := s.FindByName(ctx, stored.Variant, doc.NameKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func newMongoDocument(rec *model.StanceRecord) mongoDocument {
	return mongoDocument{
		StanceRecord: *rec,
		NameKey:      rec.NameKey(),
		CategoryKey:  strings.ToLower(rec.Category),
		SourceCount:  len(rec.Sources),
	}
}

func (d *mongoDocument) record(variant model.Variant) *model.StanceRecord {
	rec := d.StanceRecord
	if rec.Variant == "" {
		rec.Variant = variant
	}
	if rec.Sources == nil {
		rec.Sources = []string{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec
}

// mongoFilter builds the query document for q
func mongoFilter(q Query) bson.D {
	filter := bson.D{}

	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(text)}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "nameKey", Value: re}},
			bson.D{{Key: "categoryKey", Value: re}},
		}})
	}
	if q.Stance != "" {
		filter = append(filter, bson.E{Key: "stance", Value: string(q.Stance)})
	}
	if q.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(q.Status)})
	}
	if q.FeaturedOnly {
		filter = append(filter, bson.E{Key: "featured", Value: true})
	}

	return filter
}

// mongoSort mirrors sqliteOrderBy
func mongoSort(o Order) bson.D {
	switch o {
	case OrderRanked:
		return bson.D{
			{Key: "featured", Value: -1},
			{Key: "confidence", Value: -1},
			{Key: "sourceCount", Value: -1},
			{Key: "nameKey", Value: 1},
		}
	case OrderConfidence:
		return bson.D{
			{Key: "confidence", Value: -1},
			{Key: "createdAt", Value: -1},
			{Key: "nameKey", Value: 1},
		}
	default:
		return bson.D{{Key: "nameKey", Value: 1}}
	}
}
