package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shouni/promptart-kit/pkg/domain"
	"github.com/shouni/promptart-kit/pkg/logging"
)

const (
	promptsCollection = "prompts"
	usersCollection   = "users"
	savedCollection   = "saved_prompts"

	queryTimeout = 5 * time.Second
)

// MongoStorage は Storage の MongoDB 実装です。
type MongoStorage struct {
	client  *mongo.Client
	prompts *mongo.Collection
	users   *mongo.Collection
	saved   *mongo.Collection
	log     *slog.Logger
}

func NewMongoStorage(uri, database string, log *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(database)
	m := &MongoStorage{
		client:  client,
		prompts: db.Collection(promptsCollection),
		users:   db.Collection(usersCollection),
		saved:   db.Collection(savedCollection),
		log:     log.With(logging.Module("mongo")),
	}

	// 一意制約: メールアドレス、(ユーザー, プロンプト) の組
	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn("creating users index", logging.Err(err))
	}
	_, err = m.saved.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "prompt_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn("creating saved_prompts index", logging.Err(err))
	}

	return m, nil
}

func (m *MongoStorage) UpsertPrompt(p domain.Prompt) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := m.prompts.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	return err
}

func (m *MongoStorage) GetPrompt(id string) (*domain.Prompt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var p domain.Prompt
	err := m.prompts.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding prompt: %w", err)
	}
	return &p, nil
}

func (m *MongoStorage) ListPrompts(filter PromptFilter) ([]domain.Prompt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Featured {
		query["featured"] = true
	}
	if filter.Trending {
		query["trending"] = true
	}
	if filter.Search != "" {
		// タイトルと本文への部分一致。インメモリ実装と同じ大文字小文字無視です。
		pattern := regexQuoteMeta(filter.Search)
		query["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"text": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.prompts.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer cursor.Close(ctx)

	var result []domain.Prompt
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decoding prompts: %w", err)
	}
	return result, nil
}

// regexQuoteMeta は検索語を正規表現リテラルとして扱えるようにエスケープします。
func regexQuoteMeta(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (m *MongoStorage) ListCategories() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	values, err := m.prompts.Distinct(ctx, "category", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	var categories []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			categories = append(categories, s)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *MongoStorage) CreateUser(u domain.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := m.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (m *MongoStorage) GetUser(id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var u domain.User
	err := m.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

func (m *MongoStorage) GetUserByEmail(email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var u domain.User
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &u, nil
}

func (m *MongoStorage) AddSaved(s domain.SavedPrompt) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := m.saved.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		// 同一プロンプトの二重保存は何もしません。
		return nil
	}
	return err
}

func (m *MongoStorage) RemoveSaved(userID, promptID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	res, err := m.saved.DeleteOne(ctx, bson.M{"user_id": userID, "prompt_id": promptID})
	if err != nil {
		return fmt.Errorf("removing saved prompt: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStorage) ListSaved(userID string) ([]domain.SavedPrompt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "saved_at", Value: 1}})
	cursor, err := m.saved.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing saved prompts: %w", err)
	}
	defer cursor.Close(ctx)

	var result []domain.SavedPrompt
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decoding saved prompts: %w", err)
	}
	return result, nil
}

func (m *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
