package controllers

import (
	"github.com/gin-gonic/gin"
	mw "github.com/mmdatafocus/church_backend/middlewares"
	"github.com/mmdatafocus/church_backend/models"
)

func ListEvents(c *gin.Context) { list(c, models.ListEvents) }

func CreateEvent(c *gin.Context) { create(c, models.CreateEvent) }

func GetEvent(c *gin.Context) { getById(c, models.GetEvent) }

func UpdateEvent(c *gin.Context) { update(c, models.UpdateEvent) }

func DeleteEvent(c *gin.Context) { deleteById(c, models.DeleteEvent) }

func ListEventAttendance(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.GetEvent(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	rows, err := models.ListAttendance(ctx, models.AttendanceReferenceEvent, id)
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

// CheckIn records attendance; a full event answers 400 and a repeat check-in 422.
func CheckIn(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var req attendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	row, err := models.CheckIn(c.Request.Context(), id, req.MemberId)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, row)
}

func RemoveEventAttendance(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	memberId, ok := paramId(c, "memberId")
	if !ok {
		return
	}
	if err := models.RemoveAttendance(c.Request.Context(), models.AttendanceReferenceEvent, id, memberId); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}
