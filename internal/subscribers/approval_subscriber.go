package subscribers

import (
	"context"
	"os"
	"time"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aftersale-service/internal/models"
)

// CancellationDecider executes approval decisions on cancellation requests.
// Defined here to avoid an import cycle with the services package.
type CancellationDecider interface {
	ApproveCancellation(id uuid.UUID, tenantID, processedBy string, overridePercentage *float64, comments string) (*models.CancellationRequest, error)
	RejectCancellation(id uuid.UUID, tenantID, processedBy, comments string) (*models.CancellationRequest, error)
}

// ReturnDecider executes approval decisions on return requests.
type ReturnDecider interface {
	ApplyReturnTransition(returnID uuid.UUID, tenantID string, target models.ReturnStatus, note string, userID *uuid.UUID) (*models.ReturnRequest, error)
}

// ApprovalSubscriber consumes approval-service events and executes the
// approved aftersale decision. High-value refunds route through the approval
// workflow instead of being decided directly in the admin UI.
type ApprovalSubscriber struct {
	subscriber          *gosharedevents.Subscriber
	cancellationDecider CancellationDecider
	returnDecider       ReturnDecider
	logger              *logrus.Entry
	cancel              context.CancelFunc
}

// NewApprovalSubscriber creates a new approval event subscriber
func NewApprovalSubscriber(
	cancellationDecider CancellationDecider,
	returnDecider ReturnDecider,
	logger *logrus.Logger,
) (*ApprovalSubscriber, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := gosharedevents.DefaultSubscriberConfig(natsURL, "aftersale-service-approvals")
	config.Name = "aftersale-service-approval-subscriber"
	config.DeliverPolicy = "new"
	config.MaxDeliver = 3
	config.AckWait = 30 * time.Second

	subscriber, err := gosharedevents.NewSubscriber(config, logger)
	if err != nil {
		return nil, err
	}

	return &ApprovalSubscriber{
		subscriber:          subscriber,
		cancellationDecider: cancellationDecider,
		returnDecider:       returnDecider,
		logger:              logger.WithField("component", "approval-subscriber"),
	}, nil
}

// Start starts listening for approval events
func (s *ApprovalSubscriber) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	subjects := []string{gosharedevents.ApprovalGranted}

	s.logger.Info("Starting approval event subscription...")

	err := s.subscriber.SubscribeApprovalEvents(ctx, subjects, s.handleApprovalEvent)
	if err != nil {
		return err
	}

	s.logger.WithField("subjects", subjects).Info("Approval subscriber started successfully")
	return nil
}

// handleApprovalEvent processes approval events
func (s *ApprovalSubscriber) handleApprovalEvent(ctx context.Context, event *gosharedevents.ApprovalEvent) error {
	s.logger.WithFields(logrus.Fields{
		"event_type":    event.EventType,
		"approval_id":   event.ApprovalRequestID,
		"action_type":   event.ActionType,
		"resource_type": event.ResourceType,
		"status":        event.Status,
	}).Info("Received approval event")

	if event.Status != "approved" {
		s.logger.WithField("status", event.Status).Debug("Ignoring non-approved event")
		return nil
	}

	switch event.ResourceType {
	case "cancellation_request":
		return s.executeCancellationDecision(event)
	case "return_request":
		return s.executeReturnApproval(event)
	default:
		s.logger.WithField("resource_type", event.ResourceType).Debug("Ignoring unrelated approval event")
		return nil
	}
}

// executeCancellationDecision applies an approved cancellation decision
func (s *ApprovalSubscriber) executeCancellationDecision(event *gosharedevents.ApprovalEvent) error {
	requestID, err := uuid.Parse(event.ResourceID)
	if err != nil {
		s.logger.WithError(err).Error("Invalid cancellation request ID in approval event")
		return nil // Don't retry for invalid IDs
	}

	var overridePercentage *float64
	comments := ""
	if event.ActionData != nil {
		if pct, ok := event.ActionData["refundPercentage"].(float64); ok {
			overridePercentage = &pct
		}
		if c, ok := event.ActionData["comments"].(string); ok {
			comments = c
		}
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"approver":   event.ApproverName,
	}).Info("Executing approved cancellation decision")

	_, err = s.cancellationDecider.ApproveCancellation(requestID, event.TenantID, event.ApproverName, overridePercentage, comments)
	if err != nil {
		s.logger.WithError(err).Error("Failed to execute approved cancellation")
		return err
	}

	s.logger.Info("Approved cancellation executed successfully")
	return nil
}

// executeReturnApproval moves an approved return request to APPROVED
func (s *ApprovalSubscriber) executeReturnApproval(event *gosharedevents.ApprovalEvent) error {
	returnID, err := uuid.Parse(event.ResourceID)
	if err != nil {
		s.logger.WithError(err).Error("Invalid return request ID in approval event")
		return nil // Don't retry for invalid IDs
	}

	note := ""
	if event.ActionData != nil {
		if n, ok := event.ActionData["notes"].(string); ok {
			note = n
		}
	}

	var approver *uuid.UUID
	if id, err := uuid.Parse(event.ApproverID); err == nil {
		approver = &id
	}

	s.logger.WithFields(logrus.Fields{
		"return_id": returnID,
		"approver":  event.ApproverName,
	}).Info("Executing approved return decision")

	_, err = s.returnDecider.ApplyReturnTransition(returnID, event.TenantID, models.ReturnStatusApproved, note, approver)
	if err != nil {
		s.logger.WithError(err).Error("Failed to execute approved return")
		return err
	}

	s.logger.Info("Approved return executed successfully")
	return nil
}

// Stop stops the approval subscriber
func (s *ApprovalSubscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.subscriber != nil {
		s.subscriber.Close()
	}
	s.logger.Info("Approval subscriber stopped")
}
