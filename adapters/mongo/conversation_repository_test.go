package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/somiapp/somi-core/domain/repositories"
)

// TestConversationRepository_Integration requires a running MongoDB instance
// (skipped if MONGODB_URI is not set)
func TestConversationRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	testDB := client.Database("somi_test")
	defer func() {
		testDB.Drop(ctx)
	}()

	repo := NewConversationRepository(testDB)

	t.Run("StartRotatesOpeningQuestions", func(t *testing.T) {
		first, err := repo.Start(ctx, "user-rotation")
		if err != nil {
			t.Fatalf("Failed to start conversation: %v", err)
		}
		if first.ID == "" {
			t.Fatal("Expected a conversation ID")
		}
		if first.OpeningQuestion != openingQuestions[0] {
			t.Errorf("Expected question %q, got %q", openingQuestions[0], first.OpeningQuestion)
		}

		second, err := repo.Start(ctx, "user-rotation")
		if err != nil {
			t.Fatalf("Failed to start second conversation: %v", err)
		}
		if second.OpeningQuestion != openingQuestions[1] {
			t.Errorf("Expected question %q, got %q", openingQuestions[1], second.OpeningQuestion)
		}
	})

	t.Run("SaveTranscriptAndEnd", func(t *testing.T) {
		conv, err := repo.Start(ctx, "user-transcripts")
		if err != nil {
			t.Fatalf("Failed to start conversation: %v", err)
		}

		messageID, err := repo.SaveTranscript(ctx, conv.ID, "오늘 공원에 갔어요")
		if err != nil {
			t.Fatalf("Failed to save transcript: %v", err)
		}
		if messageID == "" {
			t.Fatal("Expected a message ID")
		}

		if err := repo.End(ctx, conv.ID); err != nil {
			t.Fatalf("Failed to end conversation: %v", err)
		}

		if _, err := repo.SaveTranscript(ctx, conv.ID, "늦은 말"); !errors.Is(err, repositories.ErrConversationEnded) {
			t.Errorf("Expected ErrConversationEnded, got %v", err)
		}

		if err := repo.End(ctx, conv.ID); !errors.Is(err, repositories.ErrConversationEnded) {
			t.Errorf("Expected ErrConversationEnded on double end, got %v", err)
		}
	})

	t.Run("UnknownConversation", func(t *testing.T) {
		missing := "65e000000000000000000000"
		if _, err := repo.SaveTranscript(ctx, missing, "text"); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if err := repo.End(ctx, missing); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if err := repo.GenerateDiary(ctx, missing); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GenerateDiary", func(t *testing.T) {
		conv, err := repo.Start(ctx, "user-diary")
		if err != nil {
			t.Fatalf("Failed to start conversation: %v", err)
		}

		for _, text := range []string{"학교에서 그림을 그렸어요", "친구랑 축구도 했어요"} {
			if _, err := repo.SaveTranscript(ctx, conv.ID, text); err != nil {
				t.Fatalf("Failed to save transcript: %v", err)
			}
		}
		if err := repo.End(ctx, conv.ID); err != nil {
			t.Fatalf("Failed to end conversation: %v", err)
		}

		if err := repo.GenerateDiary(ctx, conv.ID); err != nil {
			t.Fatalf("Failed to generate diary: %v", err)
		}

		// Regenerating overwrites the stored entry instead of duplicating it.
		if err := repo.GenerateDiary(ctx, conv.ID); err != nil {
			t.Fatalf("Failed to regenerate diary: %v", err)
		}
	})
}

func TestConversationRepository_Unit(t *testing.T) {
	// Validation happens before any collection access, so no database is
	// needed here.
	repo := &ConversationRepository{}

	t.Run("RejectsEmptyUserID", func(t *testing.T) {
		if _, err := repo.Start(context.Background(), ""); err == nil {
			t.Error("Expected error for empty user ID")
		}
	})

	t.Run("RejectsMalformedConversationID", func(t *testing.T) {
		if _, err := repo.SaveTranscript(context.Background(), "not-hex", "text"); err == nil {
			t.Error("Expected error for malformed conversation ID")
		}
		if err := repo.End(context.Background(), "not-hex"); err == nil {
			t.Error("Expected error for malformed conversation ID")
		}
	})

	t.Run("RejectsEmptyTranscript", func(t *testing.T) {
		if _, err := repo.SaveTranscript(context.Background(), "65e000000000000000000000", ""); err == nil {
			t.Error("Expected error for empty transcript")
		}
	})
}
