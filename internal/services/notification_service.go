package services

import (
	"context"
	"fmt"

	"github.com/aqtanberli/roadmap-tracker/internal/hub"
	"github.com/aqtanberli/roadmap-tracker/internal/models"
	"github.com/aqtanberli/roadmap-tracker/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedPageLimit bounds the initial notification page handed to clients.
// The unread count is always computed over the whole collection.
const FeedPageLimit = 20

type NotificationService struct {
	repo *repository.NotificationRepository
	hub  *hub.Hub
}

func NewNotificationService(repo *repository.NotificationRepository, h *hub.Hub) *NotificationService {
	return &NotificationService{
		repo: repo,
		hub:  h,
	}
}

// CreateNotification persists a notification and pushes it to the target
// user's live connections.
func (s *NotificationService) CreateNotification(ctx context.Context, notif *models.Notification) error {
	notif.Read = false
	if err := s.repo.CreateNotification(ctx, notif); err != nil {
		return err
	}
	s.hub.Publish(notif)
	return nil
}

// GetFeed returns the most recent page of notifications plus the unread
// total for the user.
func (s *NotificationService) GetFeed(ctx context.Context, userID primitive.ObjectID) (*models.FeedPage, error) {
	items, err := s.repo.GetUserNotifications(ctx, userID, FeedPageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %v", err)
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread: %v", err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &models.FeedPage{Items: items, UnreadCount: unread}, nil
}

// MarkNotificationAsRead sets the "read" status of a notification to true
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, notifID primitive.ObjectID) error {
	return s.repo.MarkAsRead(ctx, notifID)
}

// MarkAllAsRead flips every unread notification of the user to read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// DeleteNotification deletes a specific notification
func (s *NotificationService) DeleteNotification(ctx context.Context, notifID primitive.ObjectID) error {
	return s.repo.DeleteNotification(ctx, notifID)
}

// DeleteExpiredNotifications is called periodically by cron to drop old ones.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	if err := s.repo.DeleteExpiredNotifications(ctx); err != nil {
		logrus.WithError(err).Error("Expired notification cleanup failed")
		return err
	}
	return nil
}
