package controllers

import (
	"github.com/gin-gonic/gin"
	mw "github.com/mmdatafocus/church_backend/middlewares"
	"github.com/mmdatafocus/church_backend/models"
)

func ListGroups(c *gin.Context) { list(c, models.ListGroups) }

func CreateGroup(c *gin.Context) { create(c, models.CreateGroup) }

func GetGroup(c *gin.Context) { getById(c, models.GetGroup) }

func UpdateGroup(c *gin.Context) { update(c, models.UpdateGroup) }

func DeleteGroup(c *gin.Context) { deleteById(c, models.DeleteGroup) }

// ListGroupMembers lists the roster; ?status=active|inactive narrows it.
func ListGroupMembers(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rows, err := models.ListGroupMembers(ctx, groupId, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := mw.HydrateGroupMembers(ctx, rows); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

func AddGroupMember(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewGroupMember
	if !bindJSON(c, &input) {
		return
	}
	row, err := models.AddGroupMember(c.Request.Context(), groupId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, row)
}

func RemoveGroupMember(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	memberId, ok := paramId(c, "memberId")
	if !ok {
		return
	}
	row, err := models.RemoveGroupMember(c.Request.Context(), groupId, memberId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, row)
}

func groupAndEvent(c *gin.Context) (int, int, bool) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return 0, 0, false
	}
	eventId, ok := paramId(c, "eventId")
	if !ok {
		return 0, 0, false
	}
	return groupId, eventId, true
}

func ListGroupEvents(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	var params models.PageParams
	if !bindQuery(c, &params) {
		return
	}
	page, err := models.ListGroupEvents(c.Request.Context(), groupId, params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func CreateGroupEvent(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewGroupEvent
	if !bindJSON(c, &input) {
		return
	}
	event, err := models.CreateGroupEvent(c.Request.Context(), groupId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, event)
}

func GetGroupEvent(c *gin.Context) {
	groupId, eventId, ok := groupAndEvent(c)
	if !ok {
		return
	}
	event, err := models.GetGroupEvent(c.Request.Context(), groupId, eventId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, event)
}

func UpdateGroupEvent(c *gin.Context) {
	groupId, eventId, ok := groupAndEvent(c)
	if !ok {
		return
	}
	var input models.NewGroupEvent
	if !bindJSON(c, &input) {
		return
	}
	event, err := models.UpdateGroupEvent(c.Request.Context(), groupId, eventId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, event)
}

func DeleteGroupEvent(c *gin.Context) {
	groupId, eventId, ok := groupAndEvent(c)
	if !ok {
		return
	}
	event, err := models.DeleteGroupEvent(c.Request.Context(), groupId, eventId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, event)
}

func ListGroupAttendance(c *gin.Context) {
	groupId, eventId, ok := groupAndEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.GetGroupEvent(ctx, groupId, eventId); err != nil {
		respondError(c, err)
		return
	}
	rows, err := models.ListAttendance(ctx, models.AttendanceReferenceGroupEvent, eventId)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := mw.HydrateAttendance(ctx, rows); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

type attendanceRequest struct {
	MemberId int `json:"member_id" binding:"required,gt=0"`
}

func RecordGroupAttendance(c *gin.Context) {
	groupId, eventId, ok := groupAndEvent(c)
	if !ok {
		return
	}
	var req attendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	row, err := models.RecordGroupAttendance(c.Request.Context(), groupId, eventId, req.MemberId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, row)
}

func ListGroupMessages(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	var params models.PageParams
	if !bindQuery(c, &params) {
		return
	}
	ctx := c.Request.Context()
	page, err := models.ListGroupMessages(ctx, groupId, params)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := mw.HydrateGroupMessages(ctx, page.Items); err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func PostGroupMessage(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewGroupMessage
	if !bindJSON(c, &input) {
		return
	}
	msg, err := models.PostGroupMessage(c.Request.Context(), groupId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, msg)
}

func DeleteGroupMessage(c *gin.Context) {
	groupId, ok := paramId(c, "id")
	if !ok {
		return
	}
	messageId, ok := paramId(c, "messageId")
	if !ok {
		return
	}
	msg, err := models.DeleteGroupMessage(c.Request.Context(), groupId, messageId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, msg)
}
