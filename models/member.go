package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type Member struct {
	ID               int              `gorm:"primary_key" json:"id"`
	FirstName        string           `gorm:"size:100;not null;index:idx_member_name,priority:1" json:"first_name"`
	LastName         string           `gorm:"size:100;not null;index:idx_member_name,priority:2" json:"last_name"`
	Email            *string          `gorm:"size:255;uniqueIndex" json:"email"`
	Phone            string           `gorm:"size:32" json:"phone"`
	Address          string           `gorm:"type:text" json:"address"`
	DateOfBirth      *time.Time       `json:"date_of_birth"`
	Gender           string           `gorm:"size:20" json:"gender"`
	MembershipStatus MembershipStatus `gorm:"size:20;not null;index" json:"membership_status"`
	JoinedAt         *time.Time       `json:"joined_at"`
	PhotoUrl         string           `gorm:"size:500" json:"photo_url"`
	ThumbnailUrl     string           `gorm:"size:500" json:"thumbnail_url"`
	Notes            string           `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m Member) GetId() int {
	return m.ID
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Member) EmailAddress() string {
	return utils.DereferencePtr(m.Email)
}

type NewMember struct {
	FirstName        string           `json:"first_name" binding:"required,max=100"`
	LastName         string           `json:"last_name" binding:"required,max=100"`
	Email            string           `json:"email" binding:"omitempty,email,max=255"`
	Phone            string           `json:"phone"`
	Address          string           `json:"address"`
	DateOfBirth      *time.Time       `json:"date_of_birth"`
	Gender           string           `json:"gender" binding:"omitempty,oneof=male female other"`
	MembershipStatus MembershipStatus `json:"membership_status" binding:"omitempty,oneof=visitor regular member inactive"`
	JoinedAt         *time.Time       `json:"joined_at"`
	Notes            string           `json:"notes"`
}

const (
	defaultSearchLimit   = 20
	searchPrefixRunes    = 3
	searchCandidateLimit = 200
)

type MemberFilter struct {
	Status string `form:"status" json:"status"`
	Query  string `form:"q" json:"q"`
	PageParams
}

// validate input for both create & update. (id = 0 for create)
// normalizes phone and fills defaults on success
func (input *NewMember) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	phone, err := utils.NormalizePhone(input.Phone)
	if err != nil {
		v.Add("phone", "is not a valid phone number")
	}
	if input.DateOfBirth != nil && input.DateOfBirth.After(time.Now()) {
		v.Add("date_of_birth", "cannot be in the future")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	input.Phone = phone
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.MembershipStatus == "" {
		input.MembershipStatus = MembershipStatusVisitor
	}
	if input.Email != "" {
		return utils.ValidateUnique[Member](ctx, "email", input.Email, id)
	}
	return nil
}

func CreateMember(ctx context.Context, input *NewMember) (*Member, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	member := Member{
		FirstName:        strings.TrimSpace(input.FirstName),
		LastName:         strings.TrimSpace(input.LastName),
		Email:            utils.NilIfEmpty(input.Email),
		Phone:            input.Phone,
		Address:          input.Address,
		DateOfBirth:      input.DateOfBirth,
		Gender:           input.Gender,
		MembershipStatus: input.MembershipStatus,
		JoinedAt:         input.JoinedAt,
		Notes:            input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&member).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Member](); err != nil {
		return nil, err
	}
	return &member, nil
}

func UpdateMember(ctx context.Context, id int, input *NewMember) (*Member, error) {
	member, err := utils.FetchModel[Member](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(member).Updates(map[string]interface{}{
		"first_name":        strings.TrimSpace(input.FirstName),
		"last_name":         strings.TrimSpace(input.LastName),
		"email":             utils.NilIfEmpty(input.Email),
		"phone":             input.Phone,
		"address":           input.Address,
		"date_of_birth":     input.DateOfBirth,
		"gender":            input.Gender,
		"membership_status": input.MembershipStatus,
		"joined_at":         input.JoinedAt,
		"notes":             input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Member](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Member](ctx, id)
}

// DeleteMember removes the member with their memberships, attendance and messages,
// and clears them as leader of any group. Members with giving history are kept for receipts and reporting.
func DeleteMember(ctx context.Context, id int) (*Member, error) {
	member, err := utils.FetchModel[Member](ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Donation](ctx, "member_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("member has %d donation(s); set the membership status to inactive instead", count)
	}
	count, err = utils.ResourceCountWhere[Pledge](ctx, "member_id = ? AND status IN ?", id, []PledgeStatus{PledgeStatusActive, PledgeStatusOverdue})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("member has open pledges")
	}
	count, err = utils.ResourceCountWhere[RecurringDonation](ctx, "member_id = ? AND status IN ?", id, []RecurringStatus{RecurringStatusActive, RecurringStatusPaused})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("member has recurring donations that are not cancelled")
	}

	var ledGroups []int
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&Group{}).Where("leader_member_id = ?", id).Pluck("id", &ledGroups).Error; err != nil {
			return err
		}
		if len(ledGroups) > 0 {
			if err := tx.Model(&Group{}).Where("id IN ?", ledGroups).Update("leader_member_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("member_id = ?", id).Delete(&GroupMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("member_id = ?", id).Delete(&Attendance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("member_id = ?", id).Delete(&GroupMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(member).Error
	})
	if err != nil {
		return nil, err
	}
	for _, groupId := range ledGroups {
		if err := utils.RemoveRedisBoth[Group](groupId); err != nil {
			return nil, err
		}
	}
	if err := utils.RemoveRedisBoth[Member](id); err != nil {
		return nil, err
	}
	return member, nil
}

func GetMember(ctx context.Context, id int) (*Member, error) {
	return GetResource[Member](ctx, id)
}

func ListMembers(ctx context.Context, filter MemberFilter) (*Page[Member], error) {
	return utils.RememberList[Member](filter, func() (*Page[Member], error) {
		q := config.GetDB().WithContext(ctx).Model(&Member{})
		if filter.Status != "" {
			q = q.Where("membership_status = ?", filter.Status)
		}
		if s := strings.TrimSpace(filter.Query); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
		}
		return Paginate[Member](q, filter.PageParams, "last_name, first_name, id")
	})
}

// SearchMembers matches on any name token prefix, then ranks by edit distance to the full query.
func SearchMembers(ctx context.Context, query string, limit int) ([]*Member, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*Member{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := config.GetDB().WithContext(ctx).Model(&Member{})
	cond := config.GetDB().Where("1 = 0")
	for _, token := range strings.Fields(strings.ToLower(query)) {
		prefix := []rune(token)
		if len(prefix) > searchPrefixRunes {
			prefix = prefix[:searchPrefixRunes]
		}
		like := string(prefix) + "%"
		cond = cond.Or("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like)
	}
	var candidates []*Member
	if err := q.Where(cond).Order("id").Limit(searchCandidateLimit).Find(&candidates).Error; err != nil {
		return nil, err
	}
	ranked := utils.RankByDistance(candidates, query, func(m *Member) string { return m.FullName() })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// SetMemberPhoto stores the image and a thumbnail and saves both URLs.
func SetMemberPhoto(ctx context.Context, id int, filename string, data []byte, contentType string) (*Member, error) {
	member, err := utils.FetchModel[Member](ctx, id)
	if err != nil {
		return nil, err
	}
	thumb, err := utils.MakeThumbnail(data)
	if err != nil {
		return nil, utils.NewValidationError("photo", "must be a jpeg, png or gif image")
	}
	base := fmt.Sprintf("members/%d/%s", id, utils.GenerateUniqueFilename())
	photoUrl, err := utils.StoreObject(ctx, base+"_"+sanitizeFilename(filename), data, contentType)
	if err != nil {
		return nil, err
	}
	thumbUrl, err := utils.StoreObject(ctx, base+"_thumb.jpg", thumb, "image/jpeg")
	if err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(member).Updates(map[string]interface{}{
		"photo_url":     photoUrl,
		"thumbnail_url": thumbUrl,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Member](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Member](ctx, id)
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "photo"
	}
	return name
}

// GetMembersByIds is the batch lookup behind the member dataloader.
func GetMembersByIds(ctx context.Context, ids []int) ([]*Member, error) {
	var members []*Member
	err := config.GetDB().WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&members).Error
	return members, err
}
