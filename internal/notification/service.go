package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	emaildomain "welcome-agent/internal/email/domain"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
)

// SignupMessage is published by signup forms and integrations for every new signup.
type SignupMessage struct {
	AgentID    string `json:"agentId"`
	SignupInfo string `json:"signupInfo"`
	Email      string `json:"email,omitempty"`
}

// Pipeline generates the welcome email for one signup.
type Pipeline interface {
	GenerateForAgent(ctx context.Context, agentID, signupInfo, email, sourceMessageID string) (*emaildomain.Record, error)
}

// Service consumes signup messages from Pub/Sub and runs the pipeline for each of them.
type Service struct {
	pubsubClient *pubsub.Client
	pipeline     Pipeline
	topicName    string
	subName      string
	log          *zap.Logger
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, pipeline Pipeline) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return newService(client, topicName, pipeline), nil
}

func newService(client *pubsub.Client, topicName string, pipeline Pipeline) *Service {
	return &Service{
		pubsubClient: client,
		pipeline:     pipeline,
		topicName:    topicName,
		subName:      topicName + "-sub",
		log:          logger.WithModule("pubsub"),
	}
}

// Start blocks receiving messages until ctx is cancelled. The subscription is created when missing.
func (s *Service) Start(ctx context.Context) {
	log := s.log.With(zap.String("topic", s.topicName), zap.String("subscription", s.subName))

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Error("checking subscription", zap.Error(err))
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Error("checking topic", zap.Error(err))
			return
		}
		if !topicExists {
			log.Error("topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 5 * time.Minute,
		})
		if err != nil {
			log.Error("creating subscription", zap.Error(err))
			return
		}
		log.Info("created subscription")
	}

	log.Info("listening for signups")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.HandleMessage(ctx, msg.ID, msg.Data); err != nil && retryable(err) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("receiving messages", zap.Error(err))
	}
}

// HandleMessage decodes a signup message and runs the pipeline with the message id as idempotency key.
func (s *Service) HandleMessage(ctx context.Context, id string, data []byte) error {
	var msg SignupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("dropping malformed signup message", zap.String("message_id", id), zap.Error(err))
		return appErrors.NewBadRequest("malformed signup message").WithInternal(err)
	}
	if strings.TrimSpace(msg.AgentID) == "" {
		s.log.Warn("dropping signup message without agent", zap.String("message_id", id))
		return appErrors.NewBadRequest("agentId is required")
	}

	rec, err := s.pipeline.GenerateForAgent(ctx, msg.AgentID, msg.SignupInfo, msg.Email, id)
	if err != nil {
		s.log.Error("signup pipeline failed",
			zap.String("message_id", id),
			zap.String("agent_id", msg.AgentID),
			zap.Error(err),
		)
		return err
	}
	s.log.Info("signup processed",
		zap.String("message_id", id),
		zap.String("record_id", rec.ID),
		zap.String("status", string(rec.Status)),
	)
	return nil
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

// retryable reports whether redelivery could succeed. Client errors and provider failures already
// stored a record or can never succeed, so only internal errors are retried.
func retryable(err error) bool {
	return appErrors.FromError(err).Code == appErrors.ErrInternalServer.Code
}
