package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/courteous/edge-consult-backend/internal/models"
)

// MongoStore handles post and comment CRUD in MongoDB.
type MongoStore struct {
	posts    *mongo.Collection
	comments *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		posts:    db.Collection("posts"),
		comments: db.Collection("comments"),
	}
}

// EnsureIndexes creates the unique title and slug indexes. These are the
// authoritative guard against duplicate posts: the handler's pre-insert
// lookup and the insert are not atomic, so a concurrent create with the
// same title can slip past the lookup and land here instead.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("post indexes: %w", err)
	}
	_, err = s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("comment indexes: %w", err)
	}
	return nil
}

// ── Posts ────────────────────────────────────────────────────────────

func (s *MongoStore) InsertPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}

	res, err := s.posts.InsertOne(ctx, post)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert post: %w", err)
	}
	post.ID = res.InsertedID.(primitive.ObjectID)
	return post, nil
}

func (s *MongoStore) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrBadID
	}
	var post models.Post
	err = s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FindPostBySlugOrTitle is the duplicate lookup run before post creation.
func (s *MongoStore) FindPostBySlugOrTitle(ctx context.Context, slug, title string) (*models.Post, error) {
	var post models.Post
	err := s.posts.FindOne(ctx, bson.M{
		"$or": bson.A{bson.M{"slug": slug}, bson.M{"title": title}},
	}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPosts returns posts newest first, optionally filtered by category.
func (s *MongoStore) ListPosts(ctx context.Context, category string) ([]models.Post, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrBadID
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CountPosts(ctx context.Context) (int64, error) {
	return s.posts.CountDocuments(ctx, bson.M{})
}

// CountPostsByCategory groups post counts by category.
func (s *MongoStore) CountPostsByCategory(ctx context.Context) (map[string]int64, error) {
	cur, err := s.posts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Category string `bson:"_id"`
			Count    int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Category] = row.Count
	}
	return counts, cur.Err()
}

func (s *MongoStore) TopPostsByLikes(ctx context.Context, limit int64) ([]models.PostSummary, error) {
	return s.topPosts(ctx, "like_count", limit)
}

func (s *MongoStore) TopPostsByComments(ctx context.Context, limit int64) ([]models.PostSummary, error) {
	return s.topPosts(ctx, "comment_count", limit)
}

func (s *MongoStore) topPosts(ctx context.Context, field string, limit int64) ([]models.PostSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"title": 1, field: 1})
	cur, err := s.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.PostSummary
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// IncCommentCount atomically bumps a post's denormalized comment counter.
func (s *MongoStore) IncCommentCount(ctx context.Context, postID primitive.ObjectID, delta int) error {
	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{
			"$inc": bson.M{"comment_count": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Comments ─────────────────────────────────────────────────────────

func (s *MongoStore) InsertComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Likes == nil {
		c.Likes = []string{}
	}

	res, err := s.comments.InsertOne(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return c, nil
}

// ListCommentsByPost returns a post's comments, newest first.
func (s *MongoStore) ListCommentsByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, ErrBadID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.comments.Find(ctx, bson.M{"post": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var comments []models.Comment
	if err := cur.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// FindCommentsByIDs fetches the referenced reply comments.
func (s *MongoStore) FindCommentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.comments.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var comments []models.Comment
	if err := cur.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
