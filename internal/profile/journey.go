package profile

import (
	"context"
	"math"
	"strings"

	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// Defaults applied to clinical notes written without an author
const (
	DefaultNoteAuthor = "Dr. Sarah Smith"
	DefaultNoteRole   = "Clinical Lead"

	RejectedPhotosMessage = "Your photos were rejected during clinical review. Please upload clear photos."
)

// Photo sides accepted by UploadPhoto
const (
	PhotoFront = "front"
	PhotoSide  = "side"
)

// MaxWeightKg bounds what LogWeight accepts
const MaxWeightKg = 500.0

// Journey implements the patient and clinician actions on top of the store
type Journey struct {
	store       *Store
	notifier    interfaces.NotificationService
	logger      *logger.Logger
	adminThread func(p *types.PatientProfile) []types.Message
}

// JourneyOption configures a Journey
type JourneyOption func(*Journey)

// WithAdminThread supplies the thread clinicians are shown for a record with
// no stored messages. Clinician writes to such a record extend that thread.
func WithAdminThread(fn func(p *types.PatientProfile) []types.Message) JourneyOption {
	return func(j *Journey) {
		j.adminThread = fn
	}
}

// NewJourney creates the action layer. notifier may be nil.
func NewJourney(store *Store, notifier interfaces.NotificationService, log *logger.Logger, opts ...JourneyOption) *Journey {
	j := &Journey{
		store:    store,
		notifier: notifier,
		logger:   log,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Store exposes the underlying state container
func (j *Journey) Store() *Store {
	return j.store
}

// UploadPhoto marks one verification photo as received
func (j *Journey) UploadPhoto(ctx context.Context, id, side string) (*types.PatientProfile, error) {
	if side != PhotoFront && side != PhotoSide {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "photo side must be front or side",
			map[string]interface{}{"side": side})
	}
	p, err := j.store.UpdateWith(ctx, id, SourcePatient, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		photos := cur.Photos
		if side == PhotoFront {
			photos.Front = true
		} else {
			photos.Side = true
		}
		return &types.ProfilePatch{Photos: &photos}, nil
	})
	return j.audit(SourcePatient, "upload_photo", id, p, err, map[string]interface{}{"side": side})
}

// SubmitForReview moves a new patient with both photos into the review queue
func (j *Journey) SubmitForReview(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.store.UpdateWith(ctx, id, SourcePatient, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		if cur.Stage != types.StageNew {
			return nil, types.NewPreconditionError(types.ErrCodeInvalidStage, "only new applications can be submitted",
				map[string]interface{}{"stage": cur.Stage})
		}
		if !cur.Photos.Front || !cur.Photos.Side {
			return nil, types.NewPreconditionError(types.ErrCodePhotosMissing, "front and side photos are required",
				map[string]interface{}{"front": cur.Photos.Front, "side": cur.Photos.Side})
		}
		stage := types.StageReview
		return &types.ProfilePatch{Stage: &stage}, nil
	})
	if err == nil {
		j.notifyClinicians(ctx, "New application for review", p.Name+" has submitted their application.",
			map[string]interface{}{"patient_id": id})
	}
	return j.audit(SourcePatient, "submit_for_review", id, p, err, nil)
}

// LogWeight records the current weight and clears the weigh-in reminder.
// The last logged date is kept as stored.
func (j *Journey) LogWeight(ctx context.Context, id string, kg float64) (*types.PatientProfile, error) {
	if math.IsNaN(kg) || kg <= 0 || kg > MaxWeightKg {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "weight must be a positive number of kilograms",
			map[string]interface{}{"weight": kg})
	}
	p, err := j.store.UpdateWith(ctx, id, SourcePatient, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		wh := cur.WeightHistory
		wh.Current = kg
		alerts := cur.Alerts
		alerts.WeightDue = false
		return &types.ProfilePatch{WeightHistory: &wh, Alerts: &alerts}, nil
	})
	return j.audit(SourcePatient, "log_weight", id, p, err, map[string]interface{}{"weight": kg})
}

// SendMessage appends a patient message to the thread
func (j *Journey) SendMessage(ctx context.Context, id, content string) (*types.PatientProfile, error) {
	p, err := j.appendMessage(ctx, id, SourcePatient, types.SenderPatient, content, true)
	if err == nil {
		j.notifyClinicians(ctx, "New patient message", strings.TrimSpace(content),
			map[string]interface{}{"patient_id": id})
	}
	return j.audit(SourcePatient, "send_message", id, p, err, nil)
}

// Pay settles the first payment and starts treatment
func (j *Journey) Pay(ctx context.Context, id string) (*types.PatientProfile, error) {
	stage := types.StageActive
	paid := types.PaymentPaid
	p, err := j.store.Update(ctx, id, &types.ProfilePatch{Stage: &stage, PaymentStatus: &paid}, SourcePatient)
	return j.audit(SourcePatient, "pay", id, p, err, nil)
}

// Approve clears the patient for payment
func (j *Journey) Approve(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.setStage(ctx, id, types.StagePayment)
	if err == nil {
		j.notifyPatient(ctx, p, "Your treatment has been approved",
			"A clinician has approved your treatment. Complete payment to start your plan.")
	}
	return j.audit(SourceAdmin, "approve", id, p, err, nil)
}

// RequestInfo sends the application back to the patient
func (j *Journey) RequestInfo(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.setStage(ctx, id, types.StageNew)
	if err == nil {
		j.notifyPatient(ctx, p, "More information needed",
			"Your clinician needs more information before approving your treatment.")
	}
	return j.audit(SourceAdmin, "request_info", id, p, err, nil)
}

// Reject discharges the patient
func (j *Journey) Reject(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.setStage(ctx, id, types.StageDischarged)
	return j.audit(SourceAdmin, "reject", id, p, err, nil)
}

// RejectPhotos clears both photos, returns the patient to new and tells them why
func (j *Journey) RejectPhotos(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.store.UpdateWith(ctx, id, SourceAdmin, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		stage := types.StageNew
		photos := types.Photos{}
		messages := append(j.thread(cur, SourceAdmin), types.Message{
			ID:        j.store.newID(),
			Sender:    types.SenderSystem,
			Content:   RejectedPhotosMessage,
			Timestamp: j.store.now().UTC(),
			Read:      false,
		})
		return &types.ProfilePatch{Stage: &stage, Photos: &photos, Messages: &messages}, nil
	})
	if err == nil {
		j.notifyPatient(ctx, p, "Please upload new photos", RejectedPhotosMessage)
	}
	return j.audit(SourceAdmin, "reject_photos", id, p, err, nil)
}

// Dispatch marks the order as sent. Payment must be settled first.
func (j *Journey) Dispatch(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.store.UpdateWith(ctx, id, SourceAdmin, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		if cur.PaymentStatus != types.PaymentPaid {
			return nil, types.NewPreconditionError(types.ErrCodePaymentRequired, "payment must be settled before dispatch",
				map[string]interface{}{"paymentStatus": cur.PaymentStatus})
		}
		if cur.DispatchStatus == types.DispatchDispatched || cur.DispatchStatus == types.DispatchDelivered {
			return nil, types.NewPreconditionError(types.ErrCodeAlreadyDispatched, "order has already been dispatched",
				map[string]interface{}{"dispatchStatus": cur.DispatchStatus})
		}
		status := types.DispatchDispatched
		return &types.ProfilePatch{DispatchStatus: &status}, nil
	})
	if err == nil {
		j.notifyPatient(ctx, p, "Your medication is on its way",
			"Your order has been dispatched in discreet, temperature-controlled packaging.")
	}
	return j.audit(SourceAdmin, "dispatch", id, p, err, nil)
}

// MarkPaid records payment without changing the stage or alerts. Repeated calls are no-ops.
func (j *Journey) MarkPaid(ctx context.Context, id string) (*types.PatientProfile, error) {
	p, err := j.store.UpdateWith(ctx, id, SourceAdmin, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		if cur.PaymentStatus == types.PaymentPaid {
			return nil, nil
		}
		paid := types.PaymentPaid
		return &types.ProfilePatch{PaymentStatus: &paid}, nil
	})
	return j.audit(SourceAdmin, "mark_paid", id, p, err, nil)
}

// ForceStage sets any valid stage
func (j *Journey) ForceStage(ctx context.Context, id string, stage types.PatientStage) (*types.PatientProfile, error) {
	if !stage.Valid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidStage, "unknown patient stage",
			map[string]interface{}{"stage": stage})
	}
	p, err := j.setStage(ctx, id, stage)
	return j.audit(SourceAdmin, "force_stage", id, p, err, map[string]interface{}{"stage": stage})
}

// AddNote prepends a clinical note. Blank author and role take the defaults.
func (j *Journey) AddNote(ctx context.Context, id, content, author, role string) (*types.PatientProfile, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "note content is required", nil)
	}
	if strings.TrimSpace(author) == "" {
		author = DefaultNoteAuthor
	}
	if strings.TrimSpace(role) == "" {
		role = DefaultNoteRole
	}
	p, err := j.store.UpdateWith(ctx, id, SourceAdmin, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		note := types.ClinicalNote{
			ID:        j.store.newID(),
			Author:    author,
			Role:      role,
			Content:   content,
			Timestamp: j.store.now().UTC(),
		}
		notes := append([]types.ClinicalNote{note}, cur.Notes...)
		return &types.ProfilePatch{Notes: &notes}, nil
	})
	return j.audit(SourceAdmin, "add_note", id, p, err, nil)
}

// AdminMessage appends a clinician message to the thread
func (j *Journey) AdminMessage(ctx context.Context, id, content string) (*types.PatientProfile, error) {
	p, err := j.appendMessage(ctx, id, SourceAdmin, types.SenderAdmin, content, true)
	if err == nil {
		j.notifyPatient(ctx, p, "New message from your care team", strings.TrimSpace(content))
	}
	return j.audit(SourceAdmin, "send_message", id, p, err, nil)
}

func (j *Journey) setStage(ctx context.Context, id string, stage types.PatientStage) (*types.PatientProfile, error) {
	return j.store.Update(ctx, id, &types.ProfilePatch{Stage: &stage}, SourceAdmin)
}

func (j *Journey) appendMessage(ctx context.Context, id, source string, sender types.MessageSender, content string, read bool) (*types.PatientProfile, error) {
	if strings.TrimSpace(content) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "message content is required", nil)
	}
	return j.store.UpdateWith(ctx, id, source, func(cur *types.PatientProfile) (*types.ProfilePatch, error) {
		messages := append(j.thread(cur, source), types.Message{
			ID:        j.store.newID(),
			Sender:    sender,
			Content:   content,
			Timestamp: j.store.now().UTC(),
			Read:      read,
		})
		return &types.ProfilePatch{Messages: &messages}, nil
	})
}

// thread is the message list a write from source builds on
func (j *Journey) thread(cur *types.PatientProfile, source string) []types.Message {
	if cur.Messages != nil || source != SourceAdmin || j.adminThread == nil {
		return cur.Messages
	}
	return append([]types.Message(nil), j.adminThread(cur)...)
}

func (j *Journey) audit(actor, action, id string, p *types.PatientProfile, err error, details map[string]interface{}) (*types.PatientProfile, error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	if err != nil {
		details["error"] = err.Error()
	}
	j.logger.Audit(actor, action, "patient:"+id, err == nil, details)
	return p, err
}

func (j *Journey) notifyPatient(ctx context.Context, p *types.PatientProfile, subject, body string) {
	if j.notifier == nil {
		return
	}
	if err := j.notifier.NotifyPatient(ctx, p, subject, body); err != nil {
		j.logger.WithContext(ctx).WithError(err).WithField("patient_id", p.ID).Warn("Failed to notify patient")
	}
}

func (j *Journey) notifyClinicians(ctx context.Context, subject, body string, data map[string]interface{}) {
	if j.notifier == nil {
		return
	}
	if err := j.notifier.NotifyClinicians(ctx, subject, body, data); err != nil {
		j.logger.WithContext(ctx).WithError(err).Warn("Failed to notify clinicians")
	}
}
