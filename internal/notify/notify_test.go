package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
)

type mockSNS struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type mockSES struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func finishedPlan(status models.PlanStatus) *models.Plan {
	return &models.Plan{
		ID:        "plan-7",
		ProjectID: "proj-1",
		Title:     "Bean Box - Business Plan",
		Status:    status,
	}
}

func TestSNSPublisher(t *testing.T) {
	tests := []struct {
		status    models.PlanStatus
		wantEvent string
	}{
		{models.PlanStatusCompleted, "plan.generation.completed"},
		{models.PlanStatusFailed, "plan.generation.failed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			var got *sns.PublishInput
			client := &mockSNS{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					got = params
					return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
				},
			}
			p := NewSNSPublisher(client, "arn:aws:sns:us-east-1:123456789012:plans", logger.NewTestLogger(t))
			p.now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }

			require.NoError(t, p.OnPlanFinished(context.Background(), finishedPlan(tt.status), models.GenerationRequest{}))
			require.NotNil(t, got)
			assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:plans", aws.ToString(got.TopicArn))
			assert.Equal(t, tt.wantEvent, aws.ToString(got.MessageAttributes["event"].StringValue))

			var evt Event
			require.NoError(t, json.Unmarshal([]byte(aws.ToString(got.Message)), &evt))
			assert.Equal(t, tt.wantEvent, evt.Event)
			assert.Equal(t, "plan-7", evt.PlanID)
			assert.Equal(t, string(tt.status), evt.Status)
		})
	}
}

func TestSNSPublisher_Error(t *testing.T) {
	client := &mockSNS{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, fmt.Errorf("throttled")
		},
	}
	p := NewSNSPublisher(client, "arn", logger.NewNoOpLogger())

	err := p.OnPlanFinished(context.Background(), finishedPlan(models.PlanStatusCompleted), models.GenerationRequest{})
	assert.True(t, errors.Is(err, errors.ErrNotificationSend))
}

func TestSESMailer(t *testing.T) {
	var got *ses.SendEmailInput
	client := &mockSES{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: aws.String("email-1")}, nil
		},
	}
	m := NewSESMailer(client, "plans@example.com", logger.NewTestLogger(t))

	req := models.GenerationRequest{ProjectName: "Bean Box", OwnerEmail: " owner@example.com "}
	require.NoError(t, m.OnPlanFinished(context.Background(), finishedPlan(models.PlanStatusCompleted), req))

	require.NotNil(t, got)
	assert.Equal(t, []string{"owner@example.com"}, got.Destination.ToAddresses)
	assert.Equal(t, "plans@example.com", aws.ToString(got.Source))
	assert.Equal(t, "Your business plan for Bean Box is ready", aws.ToString(got.Message.Subject.Data))
	assert.Contains(t, aws.ToString(got.Message.Body.Text.Data), "plan-7")
}

func TestSESMailer_FailedRun(t *testing.T) {
	var got *ses.SendEmailInput
	client := &mockSES{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{}, nil
		},
	}
	m := NewSESMailer(client, "plans@example.com", logger.NewNoOpLogger())

	req := models.GenerationRequest{OwnerEmail: "owner@example.com"}
	require.NoError(t, m.OnPlanFinished(context.Background(), finishedPlan(models.PlanStatusFailed), req))

	assert.Equal(t, "Business plan generation for your project did not finish", aws.ToString(got.Message.Subject.Data))
	assert.Contains(t, aws.ToString(got.Message.Body.Text.Data), "Plan generation failed. Please try again.")
}

func TestSESMailer_SkipsWithoutOwnerEmail(t *testing.T) {
	calls := 0
	client := &mockSES{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			calls++
			return &ses.SendEmailOutput{}, nil
		},
	}
	m := NewSESMailer(client, "plans@example.com", logger.NewNoOpLogger())

	require.NoError(t, m.OnPlanFinished(context.Background(), finishedPlan(models.PlanStatusCompleted), models.GenerationRequest{}))
	assert.Equal(t, 0, calls)
}

func TestSESMailer_Error(t *testing.T) {
	client := &mockSES{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, fmt.Errorf("MessageRejected")
		},
	}
	m := NewSESMailer(client, "plans@example.com", logger.NewNoOpLogger())

	err := m.OnPlanFinished(context.Background(), finishedPlan(models.PlanStatusCompleted), models.GenerationRequest{OwnerEmail: "a@b.c"})
	assert.True(t, errors.Is(err, errors.ErrNotificationSend))
}
