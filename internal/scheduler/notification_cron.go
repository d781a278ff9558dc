package cron

import (
	"context"

	"github.com/aqtanberli/roadmap-tracker/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartNotificationCronJobs schedules periodic notification maintenance.
func StartNotificationCronJobs(notificationService *services.NotificationService) *cron.Cron {
	c := cron.New()

	// Drop expired notifications hourly
	c.AddFunc("@hourly", func() {
		err := notificationService.DeleteExpiredNotifications(context.Background())
		if err != nil {
			logrus.WithError(err).Error("DeleteExpiredNotifications failed")
		}
	})

	c.Start()
	return c
}
