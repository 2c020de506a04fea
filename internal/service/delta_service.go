package service

import (
	"context"
	"encoding/json"
	"errors"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/metrics"
	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/pkg/operations"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IDeltaService looks up stored operation logs and persists new ones in the
// background.
type IDeltaService interface {
	// Lookup reports a miss on any store failure; the caller recomputes.
	Lookup(ctx context.Context, key string) ([]operations.Operation, bool)
	Store(ctx context.Context, modelID, key string, ops []operations.Operation) error
	Consume(ctx context.Context) error
}

type deltaService struct {
	repo      contract.IDeltaRepository
	publisher IPublisherService
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
}

func NewDeltaService(
	repo contract.IDeltaRepository,
	publisher IPublisherService,
	pubSub *gochannel.GoChannel,
	topicName string,
	logger logger.ILogger,
) IDeltaService {
	return &deltaService{
		repo:      repo,
		publisher: publisher,
		pubSub:    pubSub,
		topicName: topicName,
		logger:    logger,
	}
}

func (s *deltaService) Lookup(ctx context.Context, key string) ([]operations.Operation, bool) {
	ops, err := s.repo.Load(ctx, key)
	switch {
	case err == nil:
		metrics.DeltaLookup("hit")
		return ops, true
	case errors.Is(err, contract.ErrDeltaNotFound):
		metrics.DeltaLookup("miss")
	default:
		metrics.DeltaLookup("error")
		s.logger.Warn("DELTAS", "Failed to load operation log", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return nil, false
}

func (s *deltaService) Store(ctx context.Context, modelID, key string, ops []operations.Operation) error {
	payload, err := json.Marshal(dto.PersistDeltaMessage{Key: key, ModelID: modelID, Operations: ops})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, payload)
}

func (s *deltaService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *deltaService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PersistDeltaMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error("DELTAS", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		// redelivering a malformed payload cannot succeed
		msg.Ack()
		return
	}

	if err := s.repo.Save(ctx, payload.Key, payload.Operations); err != nil {
		s.logger.Error("DELTAS", "Failed to store operation log", map[string]interface{}{
			"key":      payload.Key,
			"model_id": payload.ModelID,
			"error":    err.Error(),
		})
		msg.Nack()
		return
	}

	s.logger.Info("DELTAS", "Stored operation log", map[string]interface{}{
		"key":        payload.Key,
		"model_id":   payload.ModelID,
		"operations": len(payload.Operations),
	})
	msg.Ack()
}
