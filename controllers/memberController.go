package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListMembers(c *gin.Context) { list(c, models.ListMembers) }

// SearchMembers ranks members by fuzzy name, email and phone match on ?q=.
func SearchMembers(c *gin.Context) {
	members, err := models.SearchMembers(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, members)
}

func CreateMember(c *gin.Context) { create(c, models.CreateMember) }

func GetMember(c *gin.Context) { getById(c, models.GetMember) }

func UpdateMember(c *gin.Context) { update(c, models.UpdateMember) }

func DeleteMember(c *gin.Context) { deleteById(c, models.DeleteMember) }

func UploadMemberPhoto(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	file, ok := readUpload(c, "photo", imageMimeTypes)
	if !ok {
		return
	}
	member, err := models.SetMemberPhoto(c.Request.Context(), id, file.Filename, file.Data, file.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, member)
}
