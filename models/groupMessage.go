package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
)

type GroupMessage struct {
	ID        int       `gorm:"primary_key" json:"id"`
	GroupId   int       `gorm:"not null;index" json:"group_id"`
	MemberId  int       `gorm:"not null;index" json:"member_id"`
	Subject   string    `gorm:"size:200" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsPinned  bool      `gorm:"not null" json:"is_pinned"`
	Member    *Member   `gorm:"-" json:"member,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGroupMessage struct {
	MemberId int    `json:"member_id" binding:"required"`
	Subject  string `json:"subject" binding:"max=200"`
	Body     string `json:"body" binding:"required"`
	IsPinned bool   `json:"is_pinned"`
}

func PostGroupMessage(ctx context.Context, groupId int, input *NewGroupMessage) (*GroupMessage, error) {
	group, err := utils.FetchModel[Group](ctx, groupId)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if group.Status == GroupStatusArchived {
		return nil, utils.NewBusinessError("group is archived")
	}
	db := config.GetDB().WithContext(ctx)
	ok, err := isActiveGroupMember(db, groupId, input.MemberId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.NewBusinessError("only active members of the group can post messages")
	}
	msg := GroupMessage{
		GroupId:  groupId,
		MemberId: input.MemberId,
		Subject:  input.Subject,
		Body:     input.Body,
		IsPinned: input.IsPinned,
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListGroupMessages returns pinned messages first, newest first.
func ListGroupMessages(ctx context.Context, groupId int, params PageParams) (*Page[GroupMessage], error) {
	if err := utils.ValidateResourceId[Group](ctx, groupId); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Model(&GroupMessage{}).Where("group_id = ?", groupId)
	return Paginate[GroupMessage](q, params, "is_pinned DESC, created_at DESC, id DESC")
}

func DeleteGroupMessage(ctx context.Context, groupId int, id int) (*GroupMessage, error) {
	msg, err := utils.FetchModel[GroupMessage](ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.GroupId != groupId {
		return nil, utils.ErrorRecordNotFound
	}
	if err := config.GetDB().WithContext(ctx).Delete(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}
