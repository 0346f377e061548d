package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListExpenses(c *gin.Context) { list(c, models.ListExpenses) }

func CreateExpense(c *gin.Context) { create(c, models.CreateExpense) }

func GetExpense(c *gin.Context) { getById(c, models.GetExpense) }

func UpdateExpense(c *gin.Context) { update(c, models.UpdateExpense) }

func DeleteExpense(c *gin.Context) { deleteById(c, models.DeleteExpense) }

func ApproveExpense(c *gin.Context) { transition(c, models.ApproveExpense) }

func RejectExpense(c *gin.Context) { transition(c, models.RejectExpense) }

func MarkExpensePaid(c *gin.Context) { transition(c, models.MarkExpensePaid) }

func UploadExpenseReceipt(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	file, ok := readUpload(c, "receipt", receiptMimeTypes)
	if !ok {
		return
	}
	expense, err := models.SetExpenseReceipt(c.Request.Context(), id, file.Filename, file.Data, file.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, expense)
}
