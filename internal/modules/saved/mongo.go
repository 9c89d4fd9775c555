// README: Saved itinerary store backed by MongoDB.
package saved

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "saved_itineraries"

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(mongoCollection)}
}

// mongoDoc keeps the itinerary as its original JSON text.
type mongoDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Destination string    `bson:"destination"`
	Document    string    `bson:"document"`
	CreatedAt   time.Time `bson:"createdAt"`
}

func (d mongoDoc) saved() SavedItinerary {
	return SavedItinerary{
		ID:          d.ID,
		Title:       d.Title,
		Destination: d.Destination,
		Itinerary:   []byte(d.Document),
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// EnsureIndexes creates the listing index. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, it *SavedItinerary) error {
	_, err := s.coll.InsertOne(ctx, mongoDoc{
		ID:          it.ID,
		Title:       it.Title,
		Destination: it.Destination,
		Document:    string(it.Itinerary),
		CreatedAt:   it.CreatedAt,
	})
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*SavedItinerary, error) {
	var d mongoDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it := d.saved()
	return &it, nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]SavedItinerary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]SavedItinerary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.saved())
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
