package models_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupMembershipRules(t *testing.T) {
	ctx := setup(t)
	leader := newMember(t, ctx, "James", "Zebedee", "james@example.org")
	joiner := newMember(t, ctx, "John", "Zebedee", "john@example.org")
	extra := newMember(t, ctx, "Andrew", "Jonah", "andrew@example.org")

	group, err := models.CreateGroup(ctx, &models.NewGroup{
		Name:           "Fishermen",
		LeaderMemberId: &leader.ID,
		Capacity:       2,
	})
	require.NoError(t, err)

	got, err := models.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MemberCount)

	_, err = models.AddGroupMember(ctx, group.ID, &models.NewGroupMember{MemberId: joiner.ID})
	require.NoError(t, err)

	_, err = models.AddGroupMember(ctx, group.ID, &models.NewGroupMember{MemberId: joiner.ID})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = models.AddGroupMember(ctx, group.ID, &models.NewGroupMember{MemberId: extra.ID})
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	_, err = models.AddGroupMember(ctx, group.ID, &models.NewGroupMember{MemberId: extra.ID + 100})
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	_, err = models.RemoveGroupMember(ctx, group.ID, joiner.ID)
	require.NoError(t, err)
	_, err = models.AddGroupMember(ctx, group.ID, &models.NewGroupMember{MemberId: extra.ID})
	require.NoError(t, err)

	members, err := models.ListGroupMembers(ctx, group.ID, string(models.ActiveStatusActive))
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestGroupMessagesAndAttendanceRequireMembership(t *testing.T) {
	ctx := setup(t)
	leader := newMember(t, ctx, "Paul", "Tarsus", "paul@example.org")
	outsider := newMember(t, ctx, "Demas", "Thessalonica", "demas@example.org")
	group, err := models.CreateGroup(ctx, &models.NewGroup{Name: "Letters", LeaderMemberId: &leader.ID})
	require.NoError(t, err)

	_, err = models.PostGroupMessage(ctx, group.ID, &models.NewGroupMessage{MemberId: leader.ID, Body: "first"})
	require.NoError(t, err)
	_, err = models.PostGroupMessage(ctx, group.ID, &models.NewGroupMessage{MemberId: leader.ID, Body: "pinned", IsPinned: true})
	require.NoError(t, err)
	_, err = models.PostGroupMessage(ctx, group.ID, &models.NewGroupMessage{MemberId: outsider.ID, Body: "hi"})
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	page, err := models.ListGroupMessages(ctx, group.ID, models.PageParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].IsPinned)

	start := time.Date(2025, 5, 4, 18, 0, 0, 0, time.UTC)
	meeting, err := models.CreateGroupEvent(ctx, group.ID, &models.NewGroupEvent{
		Title:   "Study",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = models.RecordGroupAttendance(ctx, group.ID, meeting.ID, leader.ID)
	require.NoError(t, err)
	_, err = models.RecordGroupAttendance(ctx, group.ID, meeting.ID, leader.ID)
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	_, err = models.RecordGroupAttendance(ctx, group.ID, meeting.ID, outsider.ID)
	require.ErrorAs(t, err, &verr)
}

func TestEventCheckInHonoursCapacityAndStatus(t *testing.T) {
	ctx := setup(t)
	a := newMember(t, ctx, "Eunice", "Lystra", "eunice@example.org")
	b := newMember(t, ctx, "Lois", "Lystra", "lois@example.org")
	start := time.Date(2025, 12, 24, 19, 0, 0, 0, time.UTC)

	_, err := models.CreateEvent(ctx, &models.NewEvent{Title: "Backwards", StartAt: start, EndAt: start.Add(-time.Hour)})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "end_at")

	event, err := models.CreateEvent(ctx, &models.NewEvent{
		Title:    "Candlelight",
		StartAt:  start,
		EndAt:    start.Add(2 * time.Hour),
		Capacity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusScheduled, event.Status)

	_, err = models.CheckIn(ctx, event.ID, a.ID)
	require.NoError(t, err)
	_, err = models.CheckIn(ctx, event.ID, b.ID)
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	_, err = models.CheckIn(ctx, event.ID, b.ID+100)
	require.ErrorAs(t, err, &verr)

	attendance, err := models.ListAttendance(ctx, models.AttendanceReferenceEvent, event.ID)
	require.NoError(t, err)
	assert.Len(t, attendance, 1)
}
