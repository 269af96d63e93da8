package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterID = "properties_seq"

var _ domain.PropertyRepository = (*PropertyRepository)(nil)

type PropertyRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database, collection string) *PropertyRepository {
	if collection == "" {
		collection = "properties"
	}
	return &PropertyRepository{
		collection: db.Collection(collection),
		counters:   db.Collection(collection + "_counters"),
	}
}

// EnsureIndexes creates the ordering index used by List and Filter.
func (r *PropertyRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seq", Value: 1}},
		Options: options.Index().SetName("seq_asc"),
	})
	if err != nil {
		return fmt.Errorf("mongodb PropertyRepository.EnsureIndexes: %w", err)
	}
	return nil
}

func (r *PropertyRepository) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": counterID},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (r *PropertyRepository) List(ctx context.Context) ([]domain.Property, error) {
	return r.find(ctx, bson.M{})
}

func (r *PropertyRepository) FindByID(ctx context.Context, id string) (*domain.Property, error) {
	var doc propertyDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb PropertyRepository.FindByID %s: %w", id, err)
	}
	p := toDomainProperty(doc)
	return &p, nil
}

func (r *PropertyRepository) Create(ctx context.Context, p domain.Property) error {
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("mongodb PropertyRepository.Create: next sequence: %w", err)
	}
	_, err = r.collection.InsertOne(ctx, toPropertyDocument(p, seq))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("mongodb PropertyRepository.Create %s: %w", p.ID, err)
	}
	return nil
}

// Update applies the patch in a single FindOneAndUpdate. updated_at uses
// $max so it never moves behind the stored value.
func (r *PropertyRepository) Update(ctx context.Context, id string, patch domain.Patch, now time.Time) (*domain.Property, error) {
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.City != nil {
		set["city"] = *patch.City
	}
	if patch.Address != nil {
		set["address"] = *patch.Address
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Surface != nil {
		set["surface"] = *patch.Surface
	}
	if patch.Rooms != nil {
		set["rooms"] = *patch.Rooms
	}
	if patch.Type != nil {
		set["type"] = *patch.Type
	}

	update := bson.M{"$max": bson.M{"updated_at": now}}
	if len(set) > 0 {
		update["$set"] = set
	}

	var doc propertyDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb PropertyRepository.Update %s: %w", id, err)
	}
	p := toDomainProperty(doc)
	return &p, nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb PropertyRepository.Delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrPropertyNotFound
	}
	return nil
}

func (r *PropertyRepository) Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error) {
	return r.find(ctx, filterQuery(f))
}

func (r *PropertyRepository) Count(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongodb PropertyRepository.Count: %w", err)
	}
	return int(n), nil
}

// Seed inserts bootstrap records, skipping ids that already exist.
func (r *PropertyRepository) Seed(ctx context.Context, props []domain.Property) (int, error) {
	loaded := 0
	for _, p := range props {
		err := r.Create(ctx, p)
		if errors.Is(err, domain.ErrDuplicateID) {
			continue
		}
		if err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func (r *PropertyRepository) find(ctx context.Context, query bson.M) ([]domain.Property, error) {
	cursor, err := r.collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb PropertyRepository.find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []propertyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb PropertyRepository.find: decode: %w", err)
	}
	return toDomainProperties(docs), nil
}

// filterQuery translates a domain filter into the equivalent Mongo query.
func filterQuery(f domain.Filter) bson.M {
	query := bson.M{}
	if f.City != "" {
		query["city"] = bson.M{"$regex": regexp.QuoteMeta(f.City), "$options": "i"}
	}
	if f.Type != "" {
		query["type"] = f.Type
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	return query
}
