package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListBudgets(c *gin.Context) { list(c, models.ListBudgets) }

func CreateBudget(c *gin.Context) { create(c, models.CreateBudget) }

func GetBudget(c *gin.Context) { getById(c, models.GetBudget) }

func UpdateBudget(c *gin.Context) { update(c, models.UpdateBudget) }

func DeleteBudget(c *gin.Context) { deleteById(c, models.DeleteBudget) }
