package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
)

// ExpoConfig points at the Expo push gateway used for mobile delivery.
type ExpoConfig struct {
	PushURL string
	Timeout time.Duration
}

type NotificationService interface {
	Notifier
	ListInbox(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int) error
	RegisterPushToken(ctx context.Context, userID int, token string, platform *string) error
	UnregisterPushToken(ctx context.Context, token string) error
	CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	httpClient       *http.Client
	cfg              ExpoConfig
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	cfg ExpoConfig,
	logger *slog.Logger,
) NotificationService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		httpClient:       &http.Client{Timeout: timeout},
		cfg:              cfg,
		logger:           logger,
	}
}

// Notify persists the inbox row and then attempts push delivery. Push is
// best-effort: a gateway failure leaves the inbox row in place and is only
// logged.
func (s *notificationService) Notify(ctx context.Context, userID int, typ models.NotificationType, title, body string, data interface{}) {
	n := &models.Notification{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
	}
	if data != nil {
		n.Data = jsonString(data)
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to store notification",
			slog.Int("user_id", userID), slog.String("type", string(typ)), slog.Any("error", err))
		return
	}

	if err := s.push(ctx, []int{userID}, title, body, data); err != nil {
		s.logger.WarnContext(ctx, "push delivery failed",
			slog.Int("user_id", userID), slog.Any("error", err))
	}
}

type expoPushMessage struct {
	To    string      `json:"to"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Data  interface{} `json:"data,omitempty"`
}

func (s *notificationService) push(ctx context.Context, userIDs []int, title, body string, data interface{}) error {
	if s.cfg.PushURL == "" {
		return nil
	}
	tokens, err := s.notificationRepo.ListPushTokens(ctx, userIDs)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	messages := make([]expoPushMessage, 0, len(tokens))
	for _, t := range tokens {
		messages = append(messages, expoPushMessage{To: t.Token, Title: title, Body: body, Data: data})
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *notificationService) ListInbox(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID int) error {
	err := s.notificationRepo.MarkRead(ctx, notificationID, userID, time.Now())
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *notificationService) RegisterPushToken(ctx context.Context, userID int, token string, platform *string) error {
	if token == "" {
		return fmt.Errorf("%w: push token is required", ErrValidationFailed)
	}
	return s.notificationRepo.UpsertPushToken(ctx, &models.PushToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
	})
}

func (s *notificationService) UnregisterPushToken(ctx context.Context, token string) error {
	return s.notificationRepo.DeletePushToken(ctx, token)
}

// CleanupOld drops read notifications past the retention window.
func (s *notificationService) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.notificationRepo.DeleteReadBefore(ctx, time.Now().Add(-olderThan))
}
