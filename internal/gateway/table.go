package gateway

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	readTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
	queryTimeout = 10 * time.Second
)

// Query selects rows by equality and orders them by one field.
type Query struct {
	Eq      bson.M
	OrderBy string
	Desc    bool
}

// Table is raw row access to one collection. Errors are passed through
// untouched; interpreting them is the caller's job.
type Table interface {
	// Select decodes every matching row into out, a pointer to a slice.
	Select(ctx context.Context, q Query, out any) error
	// SelectOne decodes the first matching row into out or returns ErrNoRows.
	SelectOne(ctx context.Context, eq bson.M, out any) error
	// Insert stores a new row and returns its server-assigned id.
	Insert(ctx context.Context, row bson.M) (string, error)
	// Update sets only the supplied fields on an existing row.
	Update(ctx context.Context, id string, set bson.M) (string, error)
	// Increment adds the given amounts to numeric fields of a row.
	Increment(ctx context.Context, id string, inc bson.M) error
	Delete(ctx context.Context, id string) error
}

// ByID matches a row by id. Hex ObjectIDs are matched as ObjectIDs, other
// ids as plain strings.
func ByID(id string) bson.M {
	return bson.M{"_id": idValue(id)}
}

func idValue(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

type mongoTable struct {
	collection   *mongo.Collection
	trackUpdates bool
	now          func() time.Time
}

// NewMongoTable wraps a collection. When trackUpdates is set, rows carry an
// updated_at timestamp in addition to created_at.
func NewMongoTable(collection *mongo.Collection, trackUpdates bool) Table {
	return &mongoTable{
		collection:   collection,
		trackUpdates: trackUpdates,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (t *mongoTable) Select(ctx context.Context, q Query, out any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := q.Eq
	if filter == nil {
		filter = bson.M{}
	}

	findOptions := options.Find()
	if q.OrderBy != "" {
		order := 1
		if q.Desc {
			order = -1
		}
		findOptions.SetSort(bson.D{{Key: q.OrderBy, Value: order}})
	}

	cursor, err := t.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}

func (t *mongoTable) SelectOne(ctx context.Context, eq bson.M, out any) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	err := t.collection.FindOne(ctx, eq).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoRows
	}
	return err
}

func (t *mongoTable) Insert(ctx context.Context, row bson.M) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	oid := primitive.NewObjectID()
	now := t.now()

	doc := make(bson.M, len(row)+3)
	for k, v := range row {
		doc[k] = v
	}
	doc["_id"] = oid
	doc["created_at"] = now
	if t.trackUpdates {
		doc["updated_at"] = now
	}

	if _, err := t.collection.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return oid.Hex(), nil
}

func (t *mongoTable) Update(ctx context.Context, id string, set bson.M) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	update := make(bson.M, len(set)+1)
	for k, v := range set {
		update[k] = v
	}
	if t.trackUpdates {
		update["updated_at"] = t.now()
	}

	result, err := t.collection.UpdateOne(ctx, ByID(id), bson.M{"$set": update})
	if err != nil {
		return "", err
	}
	if result.MatchedCount == 0 {
		return "", ErrNoRows
	}
	return id, nil
}

func (t *mongoTable) Increment(ctx context.Context, id string, inc bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := t.collection.UpdateOne(ctx, ByID(id), bson.M{"$inc": inc})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNoRows
	}
	return nil
}

func (t *mongoTable) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := t.collection.DeleteOne(ctx, ByID(id))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNoRows
	}
	return nil
}
