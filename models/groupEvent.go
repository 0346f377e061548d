package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type GroupEvent struct {
	ID          int         `gorm:"primary_key" json:"id"`
	GroupId     int         `gorm:"not null;index" json:"group_id"`
	Title       string      `gorm:"size:200;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	StartAt     time.Time   `gorm:"not null" json:"start_at"`
	EndAt       time.Time   `gorm:"not null" json:"end_at"`
	Location    string      `gorm:"size:255" json:"location"`
	Status      EventStatus `gorm:"size:20;not null" json:"status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e GroupEvent) GetId() int {
	return e.ID
}

type NewGroupEvent struct {
	Title       string      `json:"title" binding:"required,max=200"`
	Description string      `json:"description"`
	StartAt     time.Time   `json:"start_at" binding:"required"`
	EndAt       time.Time   `json:"end_at" binding:"required"`
	Location    string      `json:"location" binding:"max=255"`
	Status      EventStatus `json:"status" binding:"omitempty,oneof=scheduled cancelled completed"`
}

func (input *NewGroupEvent) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.EndAt.Before(input.StartAt) {
		return utils.NewValidationError("end_at", "must be on or after start_at")
	}
	if input.Status == "" {
		input.Status = EventStatusScheduled
	}
	return nil
}

// fetchGroupEvent loads the event and makes sure it belongs to groupId.
func fetchGroupEvent(ctx context.Context, groupId int, id int) (*GroupEvent, error) {
	event, err := utils.FetchModel[GroupEvent](ctx, id)
	if err != nil {
		return nil, err
	}
	if event.GroupId != groupId {
		return nil, utils.ErrorRecordNotFound
	}
	return event, nil
}

func CreateGroupEvent(ctx context.Context, groupId int, input *NewGroupEvent) (*GroupEvent, error) {
	group, err := utils.FetchModel[Group](ctx, groupId)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if group.Status == GroupStatusArchived {
		return nil, utils.NewBusinessError("group is archived")
	}
	event := GroupEvent{
		GroupId:     groupId,
		Title:       input.Title,
		Description: input.Description,
		StartAt:     input.StartAt,
		EndAt:       input.EndAt,
		Location:    input.Location,
		Status:      input.Status,
	}
	if err := config.GetDB().WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func UpdateGroupEvent(ctx context.Context, groupId int, id int, input *NewGroupEvent) (*GroupEvent, error) {
	event, err := fetchGroupEvent(ctx, groupId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(event).Updates(map[string]interface{}{
		"title":       input.Title,
		"description": input.Description,
		"start_at":    input.StartAt,
		"end_at":      input.EndAt,
		"location":    input.Location,
		"status":      input.Status,
	}).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[GroupEvent](ctx, id)
}

func DeleteGroupEvent(ctx context.Context, groupId int, id int) (*GroupEvent, error) {
	event, err := fetchGroupEvent(ctx, groupId, id)
	if err != nil {
		return nil, err
	}
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("reference_type = ? AND reference_id = ?", AttendanceReferenceGroupEvent, id).Delete(&Attendance{}).Error; err != nil {
			return err
		}
		return tx.Delete(event).Error
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func GetGroupEvent(ctx context.Context, groupId int, id int) (*GroupEvent, error) {
	return fetchGroupEvent(ctx, groupId, id)
}

func ListGroupEvents(ctx context.Context, groupId int, params PageParams) (*Page[GroupEvent], error) {
	if err := utils.ValidateResourceId[Group](ctx, groupId); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Model(&GroupEvent{}).Where("group_id = ?", groupId)
	return Paginate[GroupEvent](q, params, "start_at DESC, id DESC")
}

// RecordGroupAttendance checks in a member of the group at one of its events.
func RecordGroupAttendance(ctx context.Context, groupId int, eventId int, memberId int) (*Attendance, error) {
	event, err := fetchGroupEvent(ctx, groupId, eventId)
	if err != nil {
		return nil, err
	}
	if event.Status == EventStatusCancelled {
		return nil, utils.NewBusinessError("group event is cancelled")
	}
	var result *Attendance
	err = withTx(ctx, func(tx *gorm.DB) error {
		ok, err := isActiveGroupMember(tx, groupId, memberId)
		if err != nil {
			return err
		}
		if !ok {
			return utils.NewValidationError("member_id", "is not an active member of this group")
		}
		result, err = recordAttendance(tx, AttendanceReferenceGroupEvent, eventId, memberId, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
