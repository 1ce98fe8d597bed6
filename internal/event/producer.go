package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KYANTECH254/social-server/internal/domain"
	pkgkafka "github.com/KYANTECH254/social-server/internal/kafka"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserRegistered   = "auth.user.registered"
	TopicUserLoggedIn     = "auth.user.logged_in"
	TopicAccountCompleted = "auth.account.completed"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "social-server"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// UserLoggedInData is the payload for a user.logged_in event.
type UserLoggedInData struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Device string `json:"device,omitempty"`
	IP     string `json:"ip,omitempty"`
}

// AccountCompletedData is the payload for an account.completed event.
type AccountCompletedData struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}

// PublishUserLoggedIn publishes a user.logged_in event.
func (p *Producer) PublishUserLoggedIn(ctx context.Context, user *domain.User, session *domain.Session) error {
	data := UserLoggedInData{
		ID:    user.ID,
		Email: user.Email,
	}
	if session != nil {
		data.Device = session.Device
		data.IP = session.IP
	}

	event, err := pkgkafka.NewEvent(TopicUserLoggedIn, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.logged_in event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserLoggedIn, event); err != nil {
		return fmt.Errorf("publish user.logged_in event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.logged_in event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishAccountCompleted publishes an account.completed event.
func (p *Producer) PublishAccountCompleted(ctx context.Context, user *domain.User, account *domain.Account) error {
	data := AccountCompletedData{
		UserID:   user.ID,
		Email:    account.Email,
		Username: account.Username,
	}

	event, err := pkgkafka.NewEvent(TopicAccountCompleted, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create account.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAccountCompleted, event); err != nil {
		return fmt.Errorf("publish account.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published account.completed event",
		slog.String("user_id", user.ID),
		slog.String("username", account.Username),
	)

	return nil
}
