package models_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMemberNormalizesInput(t *testing.T) {
	ctx := setup(t)
	t.Setenv("DEFAULT_PHONE_REGION", "US")

	m, err := models.CreateMember(ctx, &models.NewMember{
		FirstName: " Peter ",
		LastName:  "Cephas",
		Email:     "Peter@Example.ORG",
		Phone:     "(201) 555-0123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Peter", m.FirstName)
	assert.Equal(t, "peter@example.org", m.EmailAddress())
	assert.Equal(t, "+12015550123", m.Phone)
	assert.Equal(t, models.MembershipStatusVisitor, m.MembershipStatus)

	_, err = models.CreateMember(ctx, &models.NewMember{FirstName: "Simon", LastName: "Cephas", Email: "peter@example.org"})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
}

func TestCreateMemberRejectsBadInput(t *testing.T) {
	ctx := setup(t)
	future := time.Now().AddDate(1, 0, 0)

	_, err := models.CreateMember(ctx, &models.NewMember{
		FirstName:   "Andrew",
		LastName:    "Bethsaida",
		Phone:       "not a phone",
		DateOfBirth: &future,
	})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "phone")
	assert.Contains(t, verr.Fields, "date_of_birth")

	_, err = models.CreateMember(ctx, &models.NewMember{LastName: "Nameless"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "first_name")
}

func TestSearchMembersRanksClosestFirst(t *testing.T) {
	ctx := setup(t)
	newMember(t, ctx, "Johanna", "Smith", "")
	newMember(t, ctx, "John", "Smith", "")
	newMember(t, ctx, "Jonathan", "Smythe", "")
	newMember(t, ctx, "Mark", "Evangelist", "")

	found, err := models.SearchMembers(ctx, "John Smith", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "John Smith", found[0].FullName())

	found, err = models.SearchMembers(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDeleteMemberWithDonationsIsRefused(t *testing.T) {
	ctx := setup(t)
	giver := newMember(t, ctx, "Matthew", "Levi", "matthew@example.org")
	_, err := models.CreateDonation(ctx, donationInput(&giver.ID, "5", day(2025, 1, 5)))
	require.NoError(t, err)

	_, err = models.DeleteMember(ctx, giver.ID)
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	quiet := newMember(t, ctx, "Thomas", "Didymus", "thomas@example.org")
	_, err = models.DeleteMember(ctx, quiet.ID)
	require.NoError(t, err)
	_, err = models.GetMember(ctx, quiet.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestSetMemberPhotoStoresThumbnail(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Stephen", "Deacon", "stephen@example.org")

	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for x := 0; x < 600; x++ {
		img.Set(x, x%400, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	got, err := models.SetMemberPhoto(ctx, member.ID, "me.png", buf.Bytes(), "image/png")
	require.NoError(t, err)
	assert.Contains(t, got.PhotoUrl, "me.png")
	assert.Contains(t, got.ThumbnailUrl, "_thumb.jpg")

	_, err = models.SetMemberPhoto(ctx, member.ID, "notes.txt", []byte("hello"), "text/plain")
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "photo")
}

func TestSearchMembersHandlesMultibyteNames(t *testing.T) {
	ctx := setup(t)
	newMember(t, ctx, "Zoë", "Ångström", "")
	newMember(t, ctx, "Zora", "Lind", "")

	found, err := models.SearchMembers(ctx, "Zoë Ångström", 10)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "Zoë Ångström", found[0].FullName())
}

func TestSearchMembersBreaksTiesById(t *testing.T) {
	ctx := setup(t)
	first := newMember(t, ctx, "Anna", "Phanuel", "")
	second := newMember(t, ctx, "Anna", "Phanuel", "")
	newMember(t, ctx, "Anna", "Phanuel", "")

	for i := 0; i < 3; i++ {
		found, err := models.SearchMembers(ctx, "Anna Phanuel", 2)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, first.ID, found[0].ID)
		assert.Equal(t, second.ID, found[1].ID)
	}
}

func TestDeleteMemberClearsGroupLeader(t *testing.T) {
	ctx := setup(t)
	leader := newMember(t, ctx, "Apollos", "Alexandria", "apollos@example.org")
	group, err := models.CreateGroup(ctx, &models.NewGroup{Name: "Scripture study", LeaderMemberId: &leader.ID})
	require.NoError(t, err)
	require.NotNil(t, group.LeaderMemberId)

	_, err = models.DeleteMember(ctx, leader.ID)
	require.NoError(t, err)

	got, err := models.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LeaderMemberId)
	assert.Equal(t, int64(0), got.MemberCount)
}
