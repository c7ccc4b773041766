// Package notify announces finished plan generation runs over AWS SNS and
// SES.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/status"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Event is the message published for every finished run.
type Event struct {
	Event     string    `json:"event"`
	PlanID    string    `json:"planId"`
	ProjectID string    `json:"projectId"`
	Status    string    `json:"status"`
	Title     string    `json:"title,omitempty"`
	At        time.Time `json:"at"`
}

func eventName(s models.PlanStatus) string {
	return "plan.generation." + string(s)
}

// SNSPublisher publishes an Event to a topic.
type SNSPublisher struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
	now      func() time.Time
}

func NewSNSPublisher(client SNSService, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns-publisher"}),
		now:      time.Now,
	}
}

func (p *SNSPublisher) Name() string { return "sns" }

func (p *SNSPublisher) OnPlanFinished(ctx context.Context, plan *models.Plan, _ models.GenerationRequest) error {
	evt := Event{
		Event:     eventName(plan.Status),
		PlanID:    plan.ID,
		ProjectID: plan.ProjectID,
		Status:    string(plan.Status),
		Title:     plan.Title,
		At:        p.now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(evt.Event)},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}

	p.logger.Info("plan event published", map[string]interface{}{
		"planId":    plan.ID,
		"event":     evt.Event,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

// SESMailer emails the project owner when a run finishes. Runs without an
// owner email are skipped.
type SESMailer struct {
	client SESService
	from   string
	logger logger.Logger
}

func NewSESMailer(client SESService, from string, log logger.Logger) *SESMailer {
	return &SESMailer{
		client: client,
		from:   from,
		logger: log.WithFields(map[string]interface{}{"component": "ses-mailer"}),
	}
}

func (m *SESMailer) Name() string { return "ses" }

func (m *SESMailer) OnPlanFinished(ctx context.Context, plan *models.Plan, req models.GenerationRequest) error {
	to := strings.TrimSpace(req.OwnerEmail)
	if to == "" {
		m.logger.Debug("no owner email, skipping", map[string]interface{}{"planId": plan.ID})
		return nil
	}

	subject, body := renderEmail(plan, req)
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("ses", err)
	}

	m.logger.Info("plan email sent", map[string]interface{}{"planId": plan.ID, "status": plan.Status})
	return nil
}

func renderEmail(plan *models.Plan, req models.GenerationRequest) (string, string) {
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		name = "your project"
	}
	progress := status.Project(string(plan.Status))

	if plan.Status == models.PlanStatusCompleted {
		subject := fmt.Sprintf("Your business plan for %s is ready", name)
		body := fmt.Sprintf("%q is ready to review.\n\nPlan ID: %s\n", plan.Title, plan.ID)
		return subject, body
	}
	subject := fmt.Sprintf("Business plan generation for %s did not finish", name)
	body := fmt.Sprintf("%s\n\nPlan ID: %s\n", progress.Message, plan.ID)
	return subject, body
}
