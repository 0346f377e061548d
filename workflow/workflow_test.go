package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/mmdatafocus/church_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func completedDonation(t *testing.T, ctx context.Context, email string) *models.Member {
	t.Helper()
	member, err := models.CreateMember(ctx, &models.NewMember{FirstName: "Lydia", LastName: "Thyatira", Email: email})
	require.NoError(t, err)
	_, err = models.CreateDonation(ctx, &models.NewDonation{
		MemberId:      &member.ID,
		Amount:        decimal.NewFromInt(75),
		DonationDate:  time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC),
		Category:      models.DonationCategoryOffering,
		PaymentMethod: models.PaymentMethodCard,
	})
	require.NoError(t, err)
	return member
}

func outboxRows(t *testing.T) []models.OutboxMessage {
	t.Helper()
	var rows []models.OutboxMessage
	require.NoError(t, config.GetDB().Order("id").Find(&rows).Error)
	return rows
}

func TestDirectProcessorSendsThankYouOnce(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	ctx := testhelper.AdminContext()
	completedDonation(t, ctx, "lydia@example.org")

	p := workflow.NewOutboxDirectProcessor(config.GetDB(), config.GetLogger())
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))
	assert.Equal(t, 0, p.ProcessOnce(context.Background()))

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "lydia@example.org", sent[0].To)
	assert.Contains(t, sent[0].Body, "75.00")

	rows := outboxRows(t)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsProcessed)
	assert.Equal(t, models.OutboxPublishStatusSent, rows[0].PublishStatus)

	require.NoError(t, workflow.ProcessMessage(context.Background(), config.GetLogger(), models.ConvertToPubSubMessage(rows[0])))
	assert.Len(t, mailer.Sent(), 1)
}

func TestProcessMessageTrustsOnlyTheStoredRow(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	completedDonation(t, testhelper.AdminContext(), "lydia@example.org")
	row := outboxRows(t)[0]

	unknown := config.PubSubMessage{ID: row.ID + 50, EventType: string(models.OutboxEventDonationCompleted), Payload: row.Payload}
	require.NoError(t, workflow.ProcessMessage(context.Background(), config.GetLogger(), unknown))
	assert.Empty(t, mailer.Sent())

	onlyId := config.PubSubMessage{ID: row.ID, EventType: "nonsense"}
	require.NoError(t, workflow.ProcessMessage(context.Background(), config.GetLogger(), onlyId))
	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "lydia@example.org", sent[0].To)
	assert.True(t, outboxRows(t)[0].IsProcessed)
}

func TestMemberWithoutEmailIsSkippedNotRetried(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	completedDonation(t, testhelper.AdminContext(), "")

	p := workflow.NewOutboxDirectProcessor(config.GetDB(), config.GetLogger())
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))
	assert.Empty(t, mailer.Sent())
	assert.True(t, outboxRows(t)[0].IsProcessed)
}

func TestDirectProcessorBacksOffOnMailFailure(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	mailer.Err = errors.New("smtp down")
	completedDonation(t, testhelper.AdminContext(), "lydia@example.org")

	p := workflow.NewOutboxDirectProcessor(config.GetDB(), config.GetLogger())
	assert.Equal(t, 0, p.ProcessOnce(context.Background()))

	row := outboxRows(t)[0]
	assert.False(t, row.IsProcessed)
	assert.Equal(t, models.OutboxPublishStatusFailed, row.PublishStatus)
	assert.Equal(t, 1, row.PublishAttempts)
	require.NotNil(t, row.LastProcessError)
	assert.Equal(t, "smtp down", *row.LastProcessError)
	require.NotNil(t, row.NextAttemptAt)
	assert.True(t, row.NextAttemptAt.After(time.Now().UTC()))

	// not due yet
	mailer.Err = nil
	assert.Equal(t, 0, p.ProcessOnce(context.Background()))
}

func TestDispatcherPublishesAndGoesDead(t *testing.T) {
	testhelper.SetupDB(t)
	completedDonation(t, testhelper.AdminContext(), "lydia@example.org")

	var published []int
	d := workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger())
	d.Publish = func(_ context.Context, msg config.PubSubMessage) (string, error) {
		published = append(published, msg.ID)
		return "server-1", nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.PollInterval = 10 * time.Millisecond
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	d.Run(ctx)

	row := outboxRows(t)[0]
	assert.Equal(t, []int{row.ID}, published)
	assert.Equal(t, models.OutboxPublishStatusSent, row.PublishStatus)
	require.NotNil(t, row.PubSubMessageId)
	assert.Equal(t, "server-1", *row.PubSubMessageId)

	_, err := models.ReplayOutboxMessage(context.Background(), row.ID)
	require.NoError(t, err)
	d.Publish = func(context.Context, config.PubSubMessage) (string, error) {
		return "", errors.New("topic missing")
	}
	d.Retry.MaxAttempts = 2
	ctx, cancel = context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	d.Run(ctx)

	row = outboxRows(t)[0]
	assert.Equal(t, models.OutboxPublishStatusDead, row.PublishStatus)
	require.NotNil(t, row.LastPublishError)
	assert.Equal(t, "topic missing", *row.LastPublishError)
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	testhelper.SetupRedis(t)
	var runs atomic.Int32
	job := workflow.Job{Name: "heartbeat", Interval: time.Hour, Run: func(context.Context, time.Time) (any, error) {
		runs.Add(1)
		return nil, nil
	}}
	s := workflow.NewScheduler(config.GetLogger())

	ran, err := s.RunJob(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, ran)

	lock, err := config.GetRedisLock().Obtain(context.Background(), "job:heartbeat", time.Minute, nil)
	require.NoError(t, err)
	ran, err = s.RunJob(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, ran)
	require.NoError(t, lock.Release(context.Background()))

	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerStopWaitsForJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var runs atomic.Int32
	s := workflow.NewScheduler(config.GetLogger())
	s.Jobs = []workflow.Job{{Name: "tick", Interval: 5 * time.Millisecond, Run: func(ctx context.Context, _ time.Time) (any, error) {
		runs.Add(1)
		return nil, nil
	}}}
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestAnnualTaxReceiptJobOnlyRunsInJanuary(t *testing.T) {
	testhelper.SetupDB(t)
	testhelper.SetupMailer(t)
	completedDonation(t, testhelper.AdminContext(), "lydia@example.org")

	var job workflow.Job
	for _, j := range workflow.DefaultJobs() {
		if j.Name == "annual_tax_receipts" {
			job = j
		}
	}
	require.NotNil(t, job.Run)

	s := workflow.NewScheduler(config.GetLogger())
	s.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	_, err := s.RunJob(context.Background(), job)
	require.NoError(t, err)
	var count int64
	require.NoError(t, config.GetDB().Model(&models.TaxReceipt{}).Count(&count).Error)
	assert.Zero(t, count)

	s.Now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }
	_, err = s.RunJob(context.Background(), job)
	require.NoError(t, err)
	var receipts []models.TaxReceipt
	require.NoError(t, config.GetDB().Find(&receipts).Error)
	require.Len(t, receipts, 1)
	assert.Equal(t, 2025, receipts[0].TaxYear)
}
