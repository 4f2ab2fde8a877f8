package rowstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

// MongoBackend maps tables to collections. Rows keep an int64 "id" drawn
// from a per-table counter; Mongo's own _id is never exposed.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoBackend(client *mongo.Client, database string) (*MongoBackend, error) {
	if client == nil {
		return nil, errors.New("mongo backend needs a client")
	}
	if database == "" {
		return nil, errors.New("mongo database name is empty")
	}
	return &MongoBackend{client: client, db: client.Database(database)}, nil
}

func (b *MongoBackend) nextID(ctx context.Context, table string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := b.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": table}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, fmt.Errorf("next id for %s: %w", table, err)
	}
	return doc.Seq, nil
}

func (b *MongoBackend) Insert(ctx context.Context, table string, row Row) error {
	_, err := b.InsertReturning(ctx, table, row)
	return err
}

func (b *MongoBackend) InsertReturning(ctx context.Context, table string, row Row) (Row, error) {
	doc := copyRow(row)
	if _, ok := doc["id"]; !ok {
		id, err := b.nextID(ctx, table)
		if err != nil {
			return nil, err
		}
		doc["id"] = id
	}
	if _, err := b.db.Collection(table).InsertOne(ctx, bson.M(doc)); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	delete(doc, "_id")
	return doc, nil
}

func (b *MongoBackend) Select(ctx context.Context, table string, f Filter) ([]Row, error) {
	cur, err := b.db.Collection(table).Find(ctx, mongoFilter(f.Conditions), findOptions(f))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	rows := make([]Row, len(docs))
	for i, d := range docs {
		rows[i] = normalizeDoc(d)
	}
	return rows, nil
}

func (b *MongoBackend) Update(ctx context.Context, table string, f Filter, fields Row) (int, error) {
	if f.Empty() {
		return 0, ErrUnfilteredWrite
	}
	res, err := b.db.Collection(table).UpdateMany(ctx, mongoFilter(f.Conditions), bson.M{"$set": bson.M(fields)})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return int(res.MatchedCount), nil
}

func (b *MongoBackend) Upsert(ctx context.Context, table string, row Row, conflict []string) (Row, error) {
	if len(conflict) == 0 {
		return nil, fmt.Errorf("upsert into %s: no conflict columns", table)
	}
	key := bson.M{}
	for _, c := range conflict {
		key[c] = row[c]
	}
	coll := b.db.Collection(table)

	var existing bson.M
	err := coll.FindOne(ctx, key, options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return b.InsertReturning(ctx, table, row)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}

	set := copyRow(row)
	delete(set, "id")
	if _, err := coll.UpdateOne(ctx, key, bson.M{"$set": bson.M(set)}); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	merged := normalizeDoc(existing)
	for k, v := range set {
		merged[k] = v
	}
	return merged, nil
}

func (b *MongoBackend) Delete(ctx context.Context, table string, f Filter) (int, error) {
	if f.Empty() {
		return 0, ErrUnfilteredWrite
	}
	res, err := b.db.Collection(table).DeleteMany(ctx, mongoFilter(f.Conditions))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return int(res.DeletedCount), nil
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, nil)
}

var mongoOps = map[Op]string{
	OpEq: "$eq", OpNeq: "$ne", OpGt: "$gt", OpGte: "$gte", OpLt: "$lt", OpLte: "$lte",
}

// mongoFilter translates conditions into a query document. Conditions on the
// same column are merged into one operator document.
func mongoFilter(conds []Condition) bson.M {
	out := bson.M{}
	for _, c := range conds {
		ops, _ := out[c.Column].(bson.M)
		if ops == nil {
			ops = bson.M{}
			out[c.Column] = ops
		}
		switch c.Op {
		case OpLike, OpILike:
			ops["$regex"] = likeRegex(formatScalar(c.Value))
			if c.Op == OpILike {
				ops["$options"] = "is"
			} else {
				ops["$options"] = "s"
			}
		case OpIn:
			items := toSlice(c.Value)
			vals := make(bson.A, len(items))
			for i, v := range items {
				vals[i] = mongoValue(c.Column, v)
			}
			ops["$in"] = vals
		case OpIs:
			ops["$eq"] = c.Value
		default:
			ops[mongoOps[c.Op]] = mongoValue(c.Column, c.Value)
		}
	}
	return out
}

// mongoValue turns numeric strings into integers for id columns, which are
// stored as numbers but arrive as text from query strings.
func mongoValue(column string, v any) any {
	s, ok := v.(string)
	if !ok || (column != "id" && !strings.HasSuffix(column, "_id")) {
		return v
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return v
}

func likeRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*', '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

func findOptions(f Filter) *options.FindOptions {
	opts := options.Find()
	projection := bson.M{"_id": 0}
	for _, c := range f.Columns {
		if c != "*" {
			projection[c] = 1
		}
	}
	opts.SetProjection(projection)
	if len(f.Order) > 0 {
		sort := bson.D{}
		hasID := false
		for _, o := range f.Order {
			hasID = hasID || o.Column == "id"
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Column, Value: dir})
		}
		if !hasID {
			dir := 1
			if f.Order[0].Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: "id", Value: dir})
		}
		opts.SetSort(sort)
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return opts
}

func normalizeDoc(d bson.M) Row {
	out := make(Row, len(d))
	for k, v := range d {
		if k == "_id" {
			continue
		}
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeDoc(t)
	case map[string]any:
		return normalizeDoc(t)
	case bson.D:
		m := make(Row, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case int32:
		return int64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	}
	return v
}
