package worker

import (
	"github.com/spec-kit/field-audit-service/internal/service"
)

// StartNotificationWorker registers the issue event log handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
