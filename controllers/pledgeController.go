package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListPledges(c *gin.Context) { list(c, models.ListPledges) }

// ListDuePledges returns active pledges whose next payment falls within the reminder window.
func ListDuePledges(c *gin.Context) {
	pledges, err := models.DuePledges(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, pledges)
}

func CreatePledge(c *gin.Context) { create(c, models.CreatePledge) }

func GetPledge(c *gin.Context) { getById(c, models.GetPledge) }

func UpdatePledge(c *gin.Context) { update(c, models.UpdatePledge) }

func DeletePledge(c *gin.Context) { deleteById(c, models.DeletePledge) }
