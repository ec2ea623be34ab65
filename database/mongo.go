package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"

	// parentField links a nested document to the path of its parent.
	parentField = "_parent"
)

// Connect opens a client and checks the primary is reachable. Transactions
// and change streams need a replica set.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// MongoStore maps document paths onto collections. A top-level path
// "products/p1" is _id "p1" in collection "products"; a nested path
// "quotations/q1/itemsCotizacion/i1" is _id "i1" in collection
// "itemsCotizacion" with _parent "quotations/q1".
type MongoStore struct {
	client      *mongo.Client
	db          *mongo.Database
	maxAttempts int
	log         *zap.Logger
}

func NewMongoStore(client *mongo.Client, dbName string, maxAttempts int, log *zap.Logger) *MongoStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &MongoStore{
		client:      client,
		db:          client.Database(dbName),
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// EnsureIndexes creates the indexes the service queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	byParent := mongo.IndexModel{Keys: bson.D{{Key: parentField, Value: 1}, {Key: "createdAt", Value: 1}}}
	byName := mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}}

	indexes := map[string][]mongo.IndexModel{
		"itemsCotizacion": {byParent, {Keys: bson.D{{Key: parentField, Value: 1}, {Key: "productId", Value: 1}}}},
		"itemsVenta":      {byParent},
		"sales":           {{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "saleDate", Value: -1}}}},
		"products":        {byName},
		"clients":         {byName},
		"employees":       {byName},
		"users":           {{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) NewID() string {
	return primitive.NewObjectID().Hex()
}

func (s *MongoStore) Get(ctx context.Context, path string) (Snapshot, error) {
	return s.get(ctx, path)
}

func (s *MongoStore) Set(ctx context.Context, path string, doc any) error {
	return s.set(ctx, path, doc)
}

func (s *MongoStore) Update(ctx context.Context, path string, fields Fields) error {
	return s.update(ctx, path, fields)
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	return s.delete(ctx, path)
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	return s.query(ctx, q)
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(txOpts); err != nil {
				return err
			}
			if err := fn(sc, &mongoTx{store: s, ctx: sc}); err != nil {
				_ = sess.AbortTransaction(context.Background())
				return err
			}
			return commitWithRetry(sc, sess)
		})
		if err == nil {
			return nil
		}
		if !hasErrorLabel(err, labelTransient) {
			return err
		}
		s.log.Debug("transaction conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrConflictRetryExhausted, err)
}

func commitWithRetry(ctx context.Context, sess mongo.Session) error {
	var err error
	for i := 0; i < 3; i++ {
		err = sess.CommitTransaction(ctx)
		if err == nil || !hasErrorLabel(err, labelUnknownCommit) {
			return err
		}
	}
	return err
}

func hasErrorLabel(err error, label string) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel(label)
	}
	return false
}

func (s *MongoStore) Subscribe(ctx context.Context, q Query, onChange func([]Snapshot), onError func(error)) (func(), error) {
	collPath := q.Collection
	if q.Doc != "" {
		collPath = Parent(q.Doc)
	}
	coll, _, err := s.collection(collPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, err
	}

	emit := func() {
		snaps, err := s.query(ctx, q)
		if err != nil {
			if ctx.Err() == nil && onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(snaps)
		}
	}
	emit()

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			emit()
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}()
	return cancel, nil
}

// locate resolves a document path to its collection, _id and parent path.
func (s *MongoStore) locate(path string) (*mongo.Collection, bson.D, string, error) {
	if !isDocPath(path) {
		return nil, nil, "", ErrInvalidPath
	}
	coll, parent, err := s.collection(Parent(path))
	if err != nil {
		return nil, nil, "", err
	}
	filter := bson.D{{Key: "_id", Value: ID(path)}}
	if parent != "" {
		filter = append(filter, bson.E{Key: parentField, Value: parent})
	}
	return coll, filter, parent, nil
}

// collection resolves a collection path to the Mongo collection and the
// parent document path ("" for top-level collections).
func (s *MongoStore) collection(path string) (*mongo.Collection, string, error) {
	if !isCollectionPath(path) {
		return nil, "", ErrInvalidPath
	}
	name := ID(path)
	parent := ""
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parent = path[:i]
	}
	return s.db.Collection(name), parent, nil
}

func (s *MongoStore) get(ctx context.Context, path string) (Snapshot, error) {
	coll, filter, _, err := s.locate(path)
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := coll.FindOne(ctx, filter).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return newSnapshot(path, raw), nil
}

func (s *MongoStore) set(ctx context.Context, path string, doc any) error {
	coll, filter, parent, err := s.locate(path)
	if err != nil {
		return err
	}
	raw, err := encode(path, doc)
	if err != nil {
		return err
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return err
	}
	if parent != "" {
		d = append(d, bson.E{Key: parentField, Value: parent})
	}
	_, err = coll.ReplaceOne(ctx, filter, d, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) update(ctx context.Context, path string, fields Fields) error {
	coll, filter, _, err := s.locate(path)
	if err != nil {
		return err
	}
	set := bson.M{}
	for k, v := range fields {
		if k == "_id" || k == parentField {
			continue
		}
		set[k] = v
	}
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) delete(ctx context.Context, path string) error {
	coll, filter, _, err := s.locate(path)
	if err != nil {
		return err
	}
	_, err = coll.DeleteOne(ctx, filter)
	return err
}

func (s *MongoStore) query(ctx context.Context, q Query) ([]Snapshot, error) {
	if q.Doc != "" {
		snap, err := s.get(ctx, q.Doc)
		if errors.Is(err, ErrNotFound) {
			return []Snapshot{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []Snapshot{snap}, nil
	}

	coll, parent, err := s.collection(q.Collection)
	if err != nil {
		return nil, err
	}
	filter := bson.D{}
	if parent != "" {
		filter = append(filter, bson.E{Key: parentField, Value: parent})
	}
	for _, f := range q.Where {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []Snapshot{}
	for cursor.Next(ctx) {
		raw := make(bson.Raw, len(cursor.Current))
		copy(raw, cursor.Current)
		id, ok := raw.Lookup("_id").StringValueOK()
		if !ok {
			continue
		}
		out = append(out, newSnapshot(Doc(q.Collection, id), raw))
	}
	return out, cursor.Err()
}

// mongoTx runs every operation on the session context of the transaction.
type mongoTx struct {
	store *MongoStore
	ctx   mongo.SessionContext
}

func (t *mongoTx) Get(path string) (Snapshot, error) {
	return t.store.get(t.ctx, path)
}

func (t *mongoTx) Query(q Query) ([]Snapshot, error) {
	return t.store.query(t.ctx, q)
}

func (t *mongoTx) Set(path string, doc any) error {
	return t.store.set(t.ctx, path, doc)
}

func (t *mongoTx) Update(path string, fields Fields) error {
	return t.store.update(t.ctx, path, fields)
}

func (t *mongoTx) Delete(path string) error {
	return t.store.delete(t.ctx, path)
}
