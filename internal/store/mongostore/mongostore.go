// Package mongostore keeps the per-user JSON rows in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"vetclinic-booking/internal/model"
)

const collection = "user_data"

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type doc struct {
	UserID    string         `bson:"_id"`
	Data      model.UserData `bson:"data"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *doc `bson:"fullDocument"`
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, coll: client.Database(database).Collection(collection)}, nil
}

func (s *Store) Close() {
	if err := s.client.Disconnect(context.Background()); err != nil {
		log.Printf("mongo disconnect: %v", err)
	}
}

func (s *Store) Load(ctx context.Context, userID string) (*model.UserData, error) {
	var d doc
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d.Data, nil
}

func (s *Store) Save(ctx context.Context, userID string, data model.UserData) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"data": data, "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) LoadAll(ctx context.Context) ([]model.UserDataRow, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []doc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.UserDataRow, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.UserDataRow{UserID: d.UserID, Data: d.Data, UpdatedAt: d.UpdatedAt})
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": userID})
	return err
}

// Subscribe follows a change stream until ctx is done. Change streams need a
// replica set or sharded cluster.
func (s *Store) Subscribe(ctx context.Context, userID string, fn func(model.UserDataRow)) error {
	pipeline := mongo.Pipeline{}
	if userID != "" {
		pipeline = mongo.Pipeline{
			bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: userID}}}},
		}
	}
	cs, err := s.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("mongo watch: %w", err)
	}
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var ev changeEvent
		if err := cs.Decode(&ev); err != nil {
			log.Printf("mongo change decode: %v", err)
			continue
		}
		row := model.UserDataRow{UserID: ev.DocumentKey.ID, UpdatedAt: time.Now()}
		if ev.FullDocument != nil {
			row.Data = ev.FullDocument.Data
			row.UpdatedAt = ev.FullDocument.UpdatedAt
		}
		fn(row)
	}
	if ctx.Err() != nil {
		return nil
	}
	return cs.Err()
}
