package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListCampaigns(c *gin.Context) { list(c, models.ListCampaigns) }

func CreateCampaign(c *gin.Context) { create(c, models.CreateCampaign) }

func GetCampaign(c *gin.Context) { getById(c, models.GetCampaign) }

func UpdateCampaign(c *gin.Context) { update(c, models.UpdateCampaign) }

func DeleteCampaign(c *gin.Context) { deleteById(c, models.DeleteCampaign) }

func ListProjects(c *gin.Context) { list(c, models.ListProjects) }

func CreateProject(c *gin.Context) { create(c, models.CreateProject) }

func GetProject(c *gin.Context) { getById(c, models.GetProject) }

func UpdateProject(c *gin.Context) { update(c, models.UpdateProject) }

func DeleteProject(c *gin.Context) { deleteById(c, models.DeleteProject) }
