package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/connectors/files"
	"polltrack/internal/util"
)

// Connector reads archived posts from a MongoDB collection of tweet
// documents, one document per post.
type Connector struct {
	uri        string
	database   string
	collection string
	timeout    time.Duration
}

type tweetDocument struct {
	ID        bson.RawValue `bson:"_id"`
	IDStr     string        `bson:"id_str"`
	CreatedAt bson.RawValue `bson:"created_at"`
	FullText  string        `bson:"full_text"`
	Text      string        `bson:"text"`
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("MONGO_URI", cfg.MongoURI); err != nil {
		return nil, err
	}
	if err := cfg.Require("MONGO_COLLECTION", cfg.MongoCollection); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.MongoTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Connector{
		uri:        cfg.MongoURI,
		database:   cfg.MongoDatabase,
		collection: cfg.MongoCollection,
		timeout:    timeout,
	}, nil
}

func (c *Connector) FetchPosts(keyword string, max int) ([]internal.FetchedPost, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(c.uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	opts := options.Find().
		SetProjection(bson.D{
			{Key: "id_str", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "full_text", Value: 1},
			{Key: "text", Value: 1},
		}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	if max > 0 {
		opts.SetLimit(int64(max))
	}

	coll := client.Database(c.database).Collection(c.collection)
	cur, err := coll.Find(ctx, KeywordFilter(keyword), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find %s.%s: %w", c.database, c.collection, err)
	}
	defer cur.Close(ctx)

	out := []internal.FetchedPost{}
	for cur.Next(ctx) {
		post, err := DocumentToPost(cur.Current)
		if err != nil {
			return nil, err
		}
		post.RawRef = fmt.Sprintf("mongodb:%s.%s/%s", c.database, c.collection, post.ID)
		out = append(out, post)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// KeywordFilter matches documents whose full text contains keyword,
// ignoring case. An empty keyword matches everything.
func KeywordFilter(keyword string) bson.D {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return bson.D{}
	}
	return bson.D{{Key: "full_text", Value: bson.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}}}
}

func DocumentToPost(raw bson.Raw) (internal.FetchedPost, error) {
	var doc tweetDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return internal.FetchedPost{}, fmt.Errorf("decode tweet document: %w", err)
	}

	id := rawID(doc.ID)
	if id == "" {
		id = doc.IDStr
	}
	if id == "" {
		return internal.FetchedPost{}, fmt.Errorf("tweet document has no id")
	}

	created, err := rawTimestamp(doc.CreatedAt)
	if err != nil {
		return internal.FetchedPost{}, fmt.Errorf("document %s: %w", id, err)
	}

	text := doc.FullText
	if text == "" {
		text = doc.Text
	}
	return internal.FetchedPost{ID: id, CreatedAt: created, Text: text}, nil
}

func rawID(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if n, ok := v.Int64OK(); ok {
		return strconv.FormatInt(n, 10)
	}
	if n, ok := v.Int32OK(); ok {
		return strconv.FormatInt(int64(n), 10)
	}
	return ""
}

func rawTimestamp(v bson.RawValue) (time.Time, error) {
	if dt, ok := v.DateTimeOK(); ok {
		return util.NaiveTime(time.UnixMilli(dt).UTC()), nil
	}
	if s, ok := v.StringValueOK(); ok {
		return files.ParseTimestamp(s)
	}
	return time.Time{}, fmt.Errorf("unsupported created_at type %s", v.Type)
}
