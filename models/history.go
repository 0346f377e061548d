package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index:idx_history_reference,priority:2" json:"reference_id"`
	ReferenceType string    `gorm:"size:100;index:idx_history_reference,priority:1" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	var b, a []byte
	if before != nil {
		b, _ = json.Marshal(before)
	}
	if after != nil {
		a, _ = json.Marshal(after)
	}

	// jobs and webhooks run without a user; they are recorded as System
	ctx := tx.Statement.Context
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok || userName == "" {
		userName = "System"
	}

	history := History{
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}
	return tx.Session(&gorm.Session{NewDB: true}).Create(&history).Error
}

func SaveHistoryCreate(tx *gorm.DB, id int, obj interface{}, description string) error {
	return createHistory(tx, HistoryActionCreate, id, tx.Statement.Table, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, referenceType string, id int, before interface{}, after interface{}, description string) error {
	return createHistory(tx, HistoryActionUpdate, id, referenceType, before, after, description)
}

func SaveHistoryStatus(tx *gorm.DB, referenceType string, id int, description string) error {
	return createHistory(tx, HistoryActionStatus, id, referenceType, nil, nil, description)
}

func SaveHistoryDelete(tx *gorm.DB, id int, obj interface{}, description string) error {
	return createHistory(tx, HistoryActionDelete, id, tx.Statement.Table, obj, nil, description)
}

type HistoryFilter struct {
	ReferenceType string `form:"reference_type"`
	ReferenceId   int    `form:"reference_id"`
	UserId        int    `form:"user_id"`
	ActionType    string `form:"action_type"`
	PageParams
}

func ListHistories(ctx context.Context, filter HistoryFilter) (*Page[History], error) {
	q := config.GetDB().WithContext(ctx).Model(&History{})
	if filter.ReferenceType != "" {
		q = q.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceId > 0 {
		q = q.Where("reference_id = ?", filter.ReferenceId)
	}
	if filter.UserId > 0 {
		q = q.Where("user_id = ?", filter.UserId)
	}
	if filter.ActionType != "" {
		q = q.Where("action_type = ?", filter.ActionType)
	}
	return Paginate[History](q, filter.PageParams, "created_at DESC, id DESC")
}
