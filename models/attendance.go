package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

// Attendance belongs to either an Event or a GroupEvent.
type Attendance struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	ReferenceType AttendanceReferenceType `gorm:"size:20;not null;uniqueIndex:idx_attendance_ref,priority:1" json:"reference_type"`
	ReferenceId   int                     `gorm:"not null;uniqueIndex:idx_attendance_ref,priority:2" json:"reference_id"`
	MemberId      int                     `gorm:"not null;uniqueIndex:idx_attendance_ref,priority:3;index" json:"member_id"`
	CheckedInAt   time.Time               `gorm:"not null" json:"checked_in_at"`
	Member        *Member                 `gorm:"-" json:"member,omitempty"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
}

type NewAttendance struct {
	MemberId int `json:"member_id" binding:"required"`
}

// recordAttendance inserts the check-in; capacity 0 means unlimited.
func recordAttendance(tx *gorm.DB, refType AttendanceReferenceType, refId int, memberId int, capacity int) (*Attendance, error) {
	var count int64
	err := tx.Model(&Attendance{}).
		Where("reference_type = ? AND reference_id = ? AND member_id = ?", refType, refId, memberId).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("member_id", "is already checked in")
	}
	if capacity > 0 {
		if err := tx.Model(&Attendance{}).
			Where("reference_type = ? AND reference_id = ?", refType, refId).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count >= int64(capacity) {
			return nil, utils.NewBusinessError("capacity of %d reached", capacity)
		}
	}
	att := Attendance{
		ReferenceType: refType,
		ReferenceId:   refId,
		MemberId:      memberId,
		CheckedInAt:   time.Now().UTC(),
	}
	if err := tx.Create(&att).Error; err != nil {
		return nil, err
	}
	return &att, nil
}

func ListAttendance(ctx context.Context, refType AttendanceReferenceType, refId int) ([]*Attendance, error) {
	var result []*Attendance
	err := config.GetDB().WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refId).
		Order("checked_in_at, id").
		Find(&result).Error
	return result, err
}

func RemoveAttendance(ctx context.Context, refType AttendanceReferenceType, refId int, memberId int) error {
	res := config.GetDB().WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND member_id = ?", refType, refId, memberId).
		Delete(&Attendance{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
