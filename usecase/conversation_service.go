// Package usecase wires conversation lifecycle operations around the turn
// controller.
package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/repositories"
	"github.com/somiapp/somi-core/internal/turn"
)

// ConversationService starts and ends diary conversations. It keeps a
// registry of controllers by conversation ID so lifecycle requests arriving
// over any transport can reach the right turn machine.
type ConversationService struct {
	conversations repositories.ConversationRepository
	logger        *zap.Logger

	mu     sync.Mutex
	active map[string]*turn.Controller
}

// NewConversationService creates a conversation service.
func NewConversationService(conversations repositories.ConversationRepository, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		logger:        logger,
		active:        make(map[string]*turn.Controller),
	}
}

// Start creates a conversation with the backend and begins its first turn on
// the given controller. The opening question comes from the backend's daily
// question pool.
func (s *ConversationService) Start(ctx context.Context, userID string, controller *turn.Controller) (repositories.Conversation, error) {
	conversation, err := s.conversations.Start(ctx, userID)
	if err != nil {
		return repositories.Conversation{}, fmt.Errorf("failed to start conversation: %w", err)
	}

	if err := controller.BeginTurn(conversation.ID, userID, conversation.OpeningQuestion); err != nil {
		return repositories.Conversation{}, err
	}

	s.mu.Lock()
	s.active[conversation.ID] = controller
	s.mu.Unlock()

	s.logger.Info("Conversation started",
		zap.String("conversationID", conversation.ID),
		zap.String("userID", userID))
	return conversation, nil
}

// End cancels the conversation's turn machine, terminates it with the
// backend, and kicks off diary generation. Diary generation is best-effort;
// its failure does not fail the end request.
func (s *ConversationService) End(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	controller, ok := s.active[conversationID]
	delete(s.active, conversationID)
	s.mu.Unlock()

	if !ok {
		return repositories.ErrNotFound
	}

	if err := controller.EndConversation(ctx); err != nil {
		return err
	}

	if err := s.conversations.GenerateDiary(ctx, conversationID); err != nil {
		s.logger.Warn("Diary generation request failed",
			zap.String("conversationID", conversationID),
			zap.Error(err))
	}
	return nil
}

// Release drops the registry entry for a controller whose transport went
// away, ending its conversation if one is still in flight.
func (s *ConversationService) Release(ctx context.Context, controller *turn.Controller) {
	conversationID := controller.Context().ConversationID
	if conversationID == "" {
		return
	}

	s.mu.Lock()
	registered := s.active[conversationID] == controller
	if registered {
		delete(s.active, conversationID)
	}
	s.mu.Unlock()

	if !registered {
		return
	}

	if err := controller.EndConversation(ctx); err != nil {
		s.logger.Warn("Failed to end conversation on release",
			zap.String("conversationID", conversationID),
			zap.Error(err))
	}
}

// ActiveCount returns the number of conversations currently in flight.
func (s *ConversationService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
