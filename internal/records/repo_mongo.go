package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"docproc/internal/shared/telemetry"
)

// DefaultDatabase is the MongoDB database holding every user collection.
const DefaultDatabase = "customer_data"

// MongoRepo stores each namespace as its own MongoDB collection.
type MongoRepo struct {
	db *mongo.Database
}

const bootPingTimeout = 2 * time.Second

// NewMongoRepo connects a pooled client. An unreachable server is logged, not
// returned: the driver reconnects on its own and each operation reports its
// own failure.
func NewMongoRepo(ctx context.Context, uri, database string) (*MongoRepo, error) {
	if strings.TrimSpace(database) == "" {
		database = DefaultDatabase
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	repo := &MongoRepo{db: client.Database(database)}

	pingCtx, pingCancel := context.WithTimeout(ctx, bootPingTimeout)
	defer pingCancel()
	if err := repo.Ping(pingCtx); err != nil {
		telemetry.Warn("records.mongo.unreachable", map[string]any{
			"database": database,
			"error":    err.Error(),
		})
		return repo, nil
	}
	telemetry.Info("records.mongo.connected", map[string]any{"database": database})
	return repo, nil
}

// NewMongoRepoFromDatabase wraps an existing database handle.
func NewMongoRepoFromDatabase(db *mongo.Database) *MongoRepo {
	return &MongoRepo{db: db}
}

// Insert implements Repo.
func (r *MongoRepo) Insert(ctx context.Context, namespace string, doc Record) (string, error) {
	body := make(bson.M, len(doc))
	for k, v := range doc {
		if k == FieldID {
			continue
		}
		body[k] = bsonValue(v)
	}
	res, err := r.db.Collection(namespace).InsertOne(ctx, body)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", namespace, err)
	}
	return stringifyID(res.InsertedID), nil
}

// Find implements Repo.
func (r *MongoRepo) Find(ctx context.Context, namespace, documentType string) ([]Record, error) {
	filter := bson.M{}
	if documentType != "" {
		filter[FieldDocumentType] = documentType
	}
	cursor, err := r.db.Collection(namespace).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", namespace, err)
	}
	defer cursor.Close(ctx)

	out := []Record{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", namespace, err)
		}
		rec := Record{}
		for k, v := range doc {
			if k == FieldID {
				rec[k] = stringifyID(v)
				continue
			}
			rec[k] = plainValue(v)
		}
		out = append(out, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", namespace, err)
	}
	return out, nil
}

// Ping implements Repo.
func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, readpref.Primary())
}

// Close implements Repo.
func (r *MongoRepo) Close(ctx context.Context) error {
	return r.db.Client().Disconnect(ctx)
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// plainValue converts BSON container and scalar types into JSON-friendly values.
func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plainValue(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plainValue(val)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		if n := json.Number(t.String()); validNumber(n) {
			return n
		}
		return t.String()
	default:
		return v
	}
}

// bsonValue maps decoded JSON values onto BSON types. Integers become int64,
// or Decimal128 when they overflow it, so no digits are lost.
func bsonValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		return bsonNumber(t)
	case map[string]any:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = bsonValue(val)
		}
		return out
	case Record:
		return bsonValue(map[string]any(t))
	case []any:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = bsonValue(val)
		}
		return out
	default:
		return v
	}
}

func bsonNumber(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if d, err := primitive.ParseDecimal128(s); err == nil {
			return d
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func validNumber(n json.Number) bool {
	_, err := json.Marshal(n)
	return err == nil
}

var _ Repo = (*MongoRepo)(nil)
