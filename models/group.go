package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type Group struct {
	ID             int         `gorm:"primary_key" json:"id"`
	Name           string      `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Description    string      `gorm:"type:text" json:"description"`
	Category       string      `gorm:"size:50;index" json:"category"`
	LeaderMemberId *int        `gorm:"index" json:"leader_member_id"`
	MeetingDay     string      `gorm:"size:20" json:"meeting_day"`
	MeetingTime    string      `gorm:"size:20" json:"meeting_time"`
	Location       string      `gorm:"size:255" json:"location"`
	Capacity       int         `gorm:"not null" json:"capacity"`
	Status         GroupStatus `gorm:"size:20;not null;index" json:"status"`
	MemberCount    int64       `gorm:"-" json:"member_count"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (g Group) GetId() int {
	return g.ID
}

type GroupMember struct {
	ID        int             `gorm:"primary_key" json:"id"`
	GroupId   int             `gorm:"not null;uniqueIndex:idx_group_member,priority:1" json:"group_id"`
	MemberId  int             `gorm:"not null;uniqueIndex:idx_group_member,priority:2;index" json:"member_id"`
	Role      GroupMemberRole `gorm:"size:20;not null" json:"role"`
	Status    ActiveStatus    `gorm:"size:20;not null" json:"status"`
	JoinedAt  time.Time       `json:"joined_at"`
	Member    *Member         `gorm:"-" json:"member,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGroup struct {
	Name           string      `json:"name" binding:"required,max=150"`
	Description    string      `json:"description"`
	Category       string      `json:"category" binding:"max=50"`
	LeaderMemberId *int        `json:"leader_member_id"`
	MeetingDay     string      `json:"meeting_day" binding:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	MeetingTime    string      `json:"meeting_time" binding:"max=20"`
	Location       string      `json:"location" binding:"max=255"`
	Capacity       int         `json:"capacity" binding:"gte=0"`
	Status         GroupStatus `json:"status" binding:"omitempty,oneof=active inactive archived"`
}

type NewGroupMember struct {
	MemberId int             `json:"member_id" binding:"required"`
	Role     GroupMemberRole `json:"role" binding:"omitempty,oneof=leader member"`
}

type GroupFilter struct {
	Status   string `form:"status" json:"status"`
	Category string `form:"category" json:"category"`
	Query    string `form:"q" json:"q"`
	PageParams
}

func (input *NewGroup) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if err := utils.ValidateOptionalReference[Member](ctx, v, "leader_member_id", input.LeaderMemberId); err != nil {
		return err
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if input.Status == "" {
		input.Status = GroupStatusActive
	}
	input.MeetingDay = strings.ToLower(input.MeetingDay)
	return utils.ValidateUnique[Group](ctx, "name", strings.TrimSpace(input.Name), id)
}

func CreateGroup(ctx context.Context, input *NewGroup) (*Group, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	group := Group{
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		Category:       input.Category,
		LeaderMemberId: input.LeaderMemberId,
		MeetingDay:     input.MeetingDay,
		MeetingTime:    input.MeetingTime,
		Location:       input.Location,
		Capacity:       input.Capacity,
		Status:         input.Status,
	}
	err := withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		// the leader is always a member of the group
		if group.LeaderMemberId != nil {
			return tx.Create(&GroupMember{
				GroupId:  group.ID,
				MemberId: *group.LeaderMemberId,
				Role:     GroupMemberRoleLeader,
				Status:   ActiveStatusActive,
				JoinedAt: time.Now().UTC(),
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Group](); err != nil {
		return nil, err
	}
	return &group, nil
}

func UpdateGroup(ctx context.Context, id int, input *NewGroup) (*Group, error) {
	group, err := utils.FetchModel[Group](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	err = withTx(ctx, func(tx *gorm.DB) error {
		err := tx.Model(group).Updates(map[string]interface{}{
			"name":             strings.TrimSpace(input.Name),
			"description":      input.Description,
			"category":         input.Category,
			"leader_member_id": input.LeaderMemberId,
			"meeting_day":      input.MeetingDay,
			"meeting_time":     input.MeetingTime,
			"location":         input.Location,
			"capacity":         input.Capacity,
			"status":           input.Status,
		}).Error
		if err != nil {
			return err
		}
		if input.LeaderMemberId == nil {
			return nil
		}
		return upsertGroupMember(tx, id, *input.LeaderMemberId, GroupMemberRoleLeader)
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Group](id); err != nil {
		return nil, err
	}
	return GetGroup(ctx, id)
}

func upsertGroupMember(tx *gorm.DB, groupId int, memberId int, role GroupMemberRole) error {
	var existing GroupMember
	err := tx.Where("group_id = ? AND member_id = ?", groupId, memberId).Take(&existing).Error
	if err == nil {
		return tx.Model(&existing).Updates(map[string]interface{}{
			"role":   role,
			"status": ActiveStatusActive,
		}).Error
	}
	if err := utils.NotFoundAsNil(err); err != nil {
		return err
	}
	return tx.Create(&GroupMember{
		GroupId:  groupId,
		MemberId: memberId,
		Role:     role,
		Status:   ActiveStatusActive,
		JoinedAt: time.Now().UTC(),
	}).Error
}

// DeleteGroup removes the group with its memberships, events, attendance and messages.
func DeleteGroup(ctx context.Context, id int) (*Group, error) {
	group, err := utils.FetchModel[Group](ctx, id)
	if err != nil {
		return nil, err
	}
	err = withTx(ctx, func(tx *gorm.DB) error {
		eventIds := tx.Model(&GroupEvent{}).Select("id").Where("group_id = ?", id)
		if err := tx.Where("reference_type = ? AND reference_id IN (?)", AttendanceReferenceGroupEvent, eventIds).Delete(&Attendance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&GroupEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&GroupMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Group](id); err != nil {
		return nil, err
	}
	return group, nil
}

func GetGroup(ctx context.Context, id int) (*Group, error) {
	group, err := GetResource[Group](ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := activeMemberCount(config.GetDB().WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	group.MemberCount = count
	return group, nil
}

func activeMemberCount(db *gorm.DB, groupId int) (int64, error) {
	var count int64
	err := db.Model(&GroupMember{}).
		Where("group_id = ? AND status = ?", groupId, ActiveStatusActive).
		Count(&count).Error
	return count, err
}

func ListGroups(ctx context.Context, filter GroupFilter) (*Page[Group], error) {
	return utils.RememberList[Group](filter, func() (*Page[Group], error) {
		q := config.GetDB().WithContext(ctx).Model(&Group{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if s := strings.TrimSpace(filter.Query); s != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
		}
		return Paginate[Group](q, filter.PageParams, "name, id")
	})
}

// AddGroupMember joins a member to the group, or reactivates an inactive membership.
func AddGroupMember(ctx context.Context, groupId int, input *NewGroupMember) (*GroupMember, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = GroupMemberRoleMember
	}
	if err := utils.ValidateResourceId[Member](ctx, input.MemberId); err != nil {
		return nil, err
	}
	var result GroupMember
	err := withTx(ctx, func(tx *gorm.DB) error {
		group, err := utils.LockModel[Group](tx, groupId)
		if err != nil {
			return err
		}
		if group.Status == GroupStatusArchived {
			return utils.NewBusinessError("group is archived")
		}
		var existing GroupMember
		err = tx.Where("group_id = ? AND member_id = ?", groupId, input.MemberId).Take(&existing).Error
		if err := utils.NotFoundAsNil(err); err != nil {
			return err
		}
		if existing.ID != 0 && existing.Status == ActiveStatusActive {
			return utils.NewValidationError("member_id", "is already a member of this group")
		}
		if group.Capacity > 0 {
			count, err := activeMemberCount(tx, groupId)
			if err != nil {
				return err
			}
			if count >= int64(group.Capacity) {
				return utils.NewBusinessError("group is at capacity (%d)", group.Capacity)
			}
		}
		if existing.ID != 0 {
			existing.Role = input.Role
			existing.Status = ActiveStatusActive
			existing.JoinedAt = time.Now().UTC()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = existing
			return nil
		}
		result = GroupMember{
			GroupId:  groupId,
			MemberId: input.MemberId,
			Role:     input.Role,
			Status:   ActiveStatusActive,
			JoinedAt: time.Now().UTC(),
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Group](groupId); err != nil {
		return nil, err
	}
	return &result, nil
}

func RemoveGroupMember(ctx context.Context, groupId int, memberId int) (*GroupMember, error) {
	var gm GroupMember
	err := config.GetDB().WithContext(ctx).Where("group_id = ? AND member_id = ?", groupId, memberId).Take(&gm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&gm).Error; err != nil {
			return err
		}
		return tx.Model(&Group{}).
			Where("id = ? AND leader_member_id = ?", groupId, memberId).
			Update("leader_member_id", nil).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Group](groupId); err != nil {
		return nil, err
	}
	return &gm, nil
}

// ListGroupMembers returns memberships; Member is filled by the caller (dataloader).
func ListGroupMembers(ctx context.Context, groupId int, status string) ([]*GroupMember, error) {
	if err := utils.ValidateResourceId[Group](ctx, groupId); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("group_id = ?", groupId)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var members []*GroupMember
	err := q.Order("role, joined_at, id").Find(&members).Error
	return members, err
}

func isActiveGroupMember(db *gorm.DB, groupId int, memberId int) (bool, error) {
	var count int64
	err := db.Model(&GroupMember{}).
		Where("group_id = ? AND member_id = ? AND status = ?", groupId, memberId, ActiveStatusActive).
		Count(&count).Error
	return count > 0, err
}
