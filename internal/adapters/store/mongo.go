package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// mongoDoc is the stored document. The report and error record are kept
// as JSON text so their tolerant decoders apply on the way back.
type mongoDoc struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	SourceRef       string    `bson:"source_ref"`
	Status          string    `bson:"status"`
	Stage           int       `bson:"stage"`
	ProgressPercent int       `bson:"progress_percent"`
	Result          string    `bson:"result,omitempty"`
	Error           string    `bson:"error,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toMongoDoc(rec *core.JobRecord) (mongoDoc, error) {
	result, errRec, err := encodeResult(rec)
	if err != nil {
		return mongoDoc{}, err
	}
	return mongoDoc{
		ID:              string(rec.ID),
		Name:            rec.Name,
		SourceRef:       rec.SourceRef,
		Status:          string(rec.Status),
		Stage:           int(rec.Stage),
		ProgressPercent: rec.ProgressPercent,
		Result:          string(result),
		Error:           string(errRec),
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}, nil
}

func (d mongoDoc) record() (*core.JobRecord, error) {
	rec := &core.JobRecord{
		ID:              core.JobID(d.ID),
		Name:            d.Name,
		SourceRef:       d.SourceRef,
		Status:          core.JobStatus(d.Status),
		Stage:           core.Stage(d.Stage),
		ProgressPercent: d.ProgressPercent,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if err := decodeResult(rec, []byte(d.Result), []byte(d.Error)); err != nil {
		return nil, err
	}
	return rec, nil
}

func (d mongoDoc) summary() core.JobSummary {
	return core.JobSummary{
		ID:              core.JobID(d.ID),
		Name:            d.Name,
		SourceRef:       d.SourceRef,
		Status:          core.JobStatus(d.Status),
		ProgressPercent: d.ProgressPercent,
		HasErrors:       d.Error != "",
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// upsertUpdate builds the $set/$setOnInsert pair that keeps created_at from
// the first write.
func upsertUpdate(doc mongoDoc) bson.D {
	set := bson.D{
		{Key: "name", Value: doc.Name},
		{Key: "source_ref", Value: doc.SourceRef},
		{Key: "status", Value: doc.Status},
		{Key: "stage", Value: doc.Stage},
		{Key: "progress_percent", Value: doc.ProgressPercent},
		{Key: "result", Value: doc.Result},
		{Key: "error", Value: doc.Error},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}
	return bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: doc.CreatedAt}}},
	}
}

func listFilter(opts core.ListOptions) bson.D {
	if opts.Status == "" {
		return bson.D{}
	}
	return bson.D{{Key: "status", Value: string(opts.Status)}}
}

// MongoStore implements core.ResultStore on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects, pings and ensures the listing indexes.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "store.dsn is required for the mongo backend")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(pingCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating mongo indexes: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// Put upserts rec by id.
func (s *MongoStore) Put(ctx context.Context, rec *core.JobRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	stamp(rec)
	doc, err := toMongoDoc(rec)
	if err != nil {
		return err
	}
	_, err = s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		upsertUpdate(doc),
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return persistenceErr("saving job "+doc.ID, err)
	}
	return nil
}

// Get returns the record for id, or (nil, nil) when absent.
func (s *MongoStore) Get(ctx context.Context, id core.JobID) (*core.JobRecord, error) {
	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: string(id)}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("loading job "+string(id), err)
	}
	rec, err := doc.record()
	if err != nil {
		return nil, persistenceErr("decoding job "+string(id), err)
	}
	return rec, nil
}

// List returns summaries, newest first.
func (s *MongoStore) List(ctx context.Context, opts core.ListOptions) ([]core.JobSummary, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(listLimit(opts))).
		SetSkip(int64(max(opts.Offset, 0))).
		SetProjection(bson.D{{Key: "result", Value: 0}})

	cur, err := s.coll.Find(ctx, listFilter(opts), findOpts)
	if err != nil {
		return nil, persistenceErr("listing jobs", err)
	}
	defer cur.Close(ctx)

	var out []core.JobSummary
	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, persistenceErr("decoding job", err)
		}
		out = append(out, doc.summary())
	}
	if err := cur.Err(); err != nil {
		return nil, persistenceErr("listing jobs", err)
	}
	return out, nil
}

// Delete removes id.
func (s *MongoStore) Delete(ctx context.Context, id core.JobID) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: string(id)}}); err != nil {
		return persistenceErr("deleting job "+string(id), err)
	}
	return nil
}

// Count returns the number of stored jobs.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, persistenceErr("counting jobs", err)
	}
	return int(n), nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
