package mongo

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

	"github.com/somiapp/somi-core/domain/repositories"
)

const (
	statusActive = "active"
	statusEnded  = "ended"
)

// openingQuestions is the built-in rotation used when no backend picks the
// question. Questions cycle per user by conversation count.
var openingQuestions = []string{
	"오늘 하루 어땠어?",
	"오늘 제일 기억에 남는 일이 뭐야?",
	"오늘 누구랑 놀았어?",
	"오늘 기분은 어땠어?",
	"오늘 새로 배운 게 있어?",
}

// ConversationRepository stores conversations, messages, and diaries in
// MongoDB. It serves standalone deployments where no diary backend is
// reachable.
type ConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	diaries       *mongo.Collection
}

// NewConversationRepository creates a MongoDB-backed conversation repository.
func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		diaries:       db.Collection("diaries"),
	}
}

type conversationDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       string             `bson:"user_id"`
	QuestionID   string             `bson:"question_id"`
	QuestionText string             `bson:"question_text"`
	Status       string             `bson:"status"`
	StartedAt    time.Time          `bson:"started_at"`
	EndedAt      *time.Time         `bson:"ended_at,omitempty"`
}

type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `bson:"conversation_id"`
	Text           string             `bson:"text"`
	CreatedAt      time.Time          `bson:"created_at"`
}

// Start implements repositories.ConversationRepository
func (r *ConversationRepository) Start(ctx context.Context, userID string) (repositories.Conversation, error) {
	if userID == "" {
		return repositories.Conversation{}, errors.New("user ID cannot be empty")
	}

	count, err := r.conversations.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return repositories.Conversation{}, fmt.Errorf("failed to count conversations: %w", err)
	}

	idx := int(count) % len(openingQuestions)
	doc := conversationDoc{
		UserID:       userID,
		QuestionID:   fmt.Sprintf("builtin-%02d", idx+1),
		QuestionText: openingQuestions[idx],
		Status:       statusActive,
		StartedAt:    time.Now(),
	}

	result, err := r.conversations.InsertOne(ctx, doc)
	if err != nil {
		return repositories.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return repositories.Conversation{}, errors.New("unexpected inserted ID type")
	}

	return repositories.Conversation{
		ID:              oid.Hex(),
		QuestionID:      doc.QuestionID,
		OpeningQuestion: doc.QuestionText,
	}, nil
}

// SaveTranscript implements repositories.ConversationRepository
func (r *ConversationRepository) SaveTranscript(ctx context.Context, conversationID, text string) (string, error) {
	if text == "" {
		return "", errors.New("transcript text cannot be empty")
	}

	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return "", fmt.Errorf("invalid conversation ID format: %w", err)
	}

	var conv conversationDoc
	err = r.conversations.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", repositories.ErrNotFound
		}
		return "", fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}
	if conv.Status != statusActive {
		return "", repositories.ErrConversationEnded
	}

	result, err := r.messages.InsertOne(ctx, messageDoc{
		ConversationID: oid,
		Text:           text,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	messageID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted ID type")
	}
	return messageID.Hex(), nil
}

// End implements repositories.ConversationRepository
func (r *ConversationRepository) End(ctx context.Context, conversationID string) error {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation ID format: %w", err)
	}

	now := time.Now()
	result, err := r.conversations.UpdateOne(
		ctx,
		bson.M{"_id": oid, "status": statusActive},
		bson.M{"$set": bson.M{"status": statusEnded, "ended_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}

	if result.MatchedCount == 0 {
		count, err := r.conversations.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return fmt.Errorf("failed to check conversation %s: %w", conversationID, err)
		}
		if count == 0 {
			return repositories.ErrNotFound
		}
		return repositories.ErrConversationEnded
	}
	return nil
}

// GenerateDiary implements repositories.ConversationRepository. With no
// generation backend available, the diary body is the ordered transcript of
// the conversation.
func (r *ConversationRepository) GenerateDiary(ctx context.Context, conversationID string) error {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation ID format: %w", err)
	}

	var conv conversationDoc
	err = r.conversations.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": oid}, opts)
	if err != nil {
		return fmt.Errorf("failed to load transcripts: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []string
	for cursor.Next(ctx) {
		var msg messageDoc
		if err := cursor.Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode transcript: %w", err)
		}
		lines = append(lines, msg.Text)
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("failed to read transcripts: %w", err)
	}

	diary := bson.M{
		"conversation_id": oid,
		"user_id":         conv.UserID,
		"question_text":   conv.QuestionText,
		"body":            strings.Join(lines, "\n"),
		"created_at":      time.Now(),
	}
	_, err = r.diaries.ReplaceOne(
		ctx,
		bson.M{"conversation_id": oid},
		diary,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store diary: %w", err)
	}
	return nil
}
