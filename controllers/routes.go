package controllers

import (
	"github.com/gin-gonic/gin"
	mw "github.com/mmdatafocus/church_backend/middlewares"
)

// RegisterRoutes mounts the REST API under /api/v1.
func RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1")

	api.POST("/auth/login", Login)
	api.POST("/payments/webhooks/stripe", StripeWebhook)

	authed := api.Group("", mw.AuthMiddleware())
	authed.POST("/auth/logout", Logout)
	authed.GET("/auth/me", Me)
	authed.PUT("/auth/password", ChangePassword)
	authed.GET("/permissions", ListPermissionCatalogue)

	users := authed.Group("/users", mw.RequireAdmin())
	users.GET("", ListUsers)
	users.POST("", CreateUser)
	users.GET("/:id", GetUser)
	users.PUT("/:id", UpdateUser)
	users.DELETE("/:id", DeleteUser)

	roles := authed.Group("/roles")
	roles.GET("", mw.RequirePermission("roles", "read"), ListRoles)
	roles.POST("", mw.RequirePermission("roles", "create"), CreateRole)
	roles.GET("/:id", mw.RequirePermission("roles", "read"), GetRole)
	roles.PUT("/:id", mw.RequirePermission("roles", "update"), UpdateRole)
	roles.DELETE("/:id", mw.RequirePermission("roles", "delete"), DeleteRole)

	members := authed.Group("/members")
	members.GET("", mw.RequirePermission("members", "read"), ListMembers)
	members.GET("/search", mw.RequirePermission("members", "read"), SearchMembers)
	members.POST("", mw.RequirePermission("members", "create"), CreateMember)
	members.GET("/:id", mw.RequirePermission("members", "read"), GetMember)
	members.PUT("/:id", mw.RequirePermission("members", "update"), UpdateMember)
	members.DELETE("/:id", mw.RequirePermission("members", "delete"), DeleteMember)
	members.POST("/:id/photo", mw.RequirePermission("members", "update"), UploadMemberPhoto)

	groups := authed.Group("/groups")
	groups.GET("", mw.RequirePermission("groups", "read"), ListGroups)
	groups.POST("", mw.RequirePermission("groups", "create"), CreateGroup)
	groups.GET("/:id", mw.RequirePermission("groups", "read"), GetGroup)
	groups.PUT("/:id", mw.RequirePermission("groups", "update"), UpdateGroup)
	groups.DELETE("/:id", mw.RequirePermission("groups", "delete"), DeleteGroup)
	groups.GET("/:id/members", mw.RequirePermission("groups", "read"), ListGroupMembers)
	groups.POST("/:id/members", mw.RequirePermission("groups", "update"), AddGroupMember)
	groups.DELETE("/:id/members/:memberId", mw.RequirePermission("groups", "update"), RemoveGroupMember)
	groups.GET("/:id/events", mw.RequirePermission("groups", "read"), ListGroupEvents)
	groups.POST("/:id/events", mw.RequirePermission("groups", "update"), CreateGroupEvent)
	groups.GET("/:id/events/:eventId", mw.RequirePermission("groups", "read"), GetGroupEvent)
	groups.PUT("/:id/events/:eventId", mw.RequirePermission("groups", "update"), UpdateGroupEvent)
	groups.DELETE("/:id/events/:eventId", mw.RequirePermission("groups", "update"), DeleteGroupEvent)
	groups.GET("/:id/events/:eventId/attendance", mw.RequirePermission("groups", "read"), ListGroupAttendance)
	groups.POST("/:id/events/:eventId/attendance", mw.RequirePermission("groups", "update"), RecordGroupAttendance)
	groups.GET("/:id/messages", mw.RequirePermission("groups", "read"), ListGroupMessages)
	groups.POST("/:id/messages", mw.RequirePermission("groups", "update"), PostGroupMessage)
	groups.DELETE("/:id/messages/:messageId", mw.RequirePermission("groups", "update"), DeleteGroupMessage)

	events := authed.Group("/events")
	events.GET("", mw.RequirePermission("events", "read"), ListEvents)
	events.POST("", mw.RequirePermission("events", "create"), CreateEvent)
	events.GET("/:id", mw.RequirePermission("events", "read"), GetEvent)
	events.PUT("/:id", mw.RequirePermission("events", "update"), UpdateEvent)
	events.DELETE("/:id", mw.RequirePermission("events", "delete"), DeleteEvent)
	events.GET("/:id/attendance", mw.RequirePermission("events", "read"), ListEventAttendance)
	events.POST("/:id/check-in", mw.RequirePermission("events", "update"), CheckIn)
	events.DELETE("/:id/attendance/:memberId", mw.RequirePermission("events", "update"), RemoveEventAttendance)

	donations := authed.Group("/donations")
	donations.GET("", mw.RequirePermission("donations", "read"), ListDonations)
	donations.GET("/export", mw.RequirePermission("donations", "export"), ExportDonations)
	donations.POST("", mw.RequirePermission("donations", "create"), CreateDonation)
	donations.GET("/:id", mw.RequirePermission("donations", "read"), GetDonation)
	donations.PUT("/:id", mw.RequirePermission("donations", "update"), UpdateDonation)
	donations.DELETE("/:id", mw.RequirePermission("donations", "delete"), DeleteDonation)

	campaigns := authed.Group("/campaigns")
	campaigns.GET("", mw.RequirePermission("campaigns", "read"), ListCampaigns)
	campaigns.POST("", mw.RequirePermission("campaigns", "create"), CreateCampaign)
	campaigns.GET("/:id", mw.RequirePermission("campaigns", "read"), GetCampaign)
	campaigns.PUT("/:id", mw.RequirePermission("campaigns", "update"), UpdateCampaign)
	campaigns.DELETE("/:id", mw.RequirePermission("campaigns", "delete"), DeleteCampaign)

	projects := authed.Group("/projects")
	projects.GET("", mw.RequirePermission("projects", "read"), ListProjects)
	projects.POST("", mw.RequirePermission("projects", "create"), CreateProject)
	projects.GET("/:id", mw.RequirePermission("projects", "read"), GetProject)
	projects.PUT("/:id", mw.RequirePermission("projects", "update"), UpdateProject)
	projects.DELETE("/:id", mw.RequirePermission("projects", "delete"), DeleteProject)

	pledges := authed.Group("/pledges")
	pledges.GET("", mw.RequirePermission("pledges", "read"), ListPledges)
	pledges.GET("/due", mw.RequirePermission("pledges", "read"), ListDuePledges)
	pledges.POST("", mw.RequirePermission("pledges", "create"), CreatePledge)
	pledges.GET("/:id", mw.RequirePermission("pledges", "read"), GetPledge)
	pledges.PUT("/:id", mw.RequirePermission("pledges", "update"), UpdatePledge)
	pledges.DELETE("/:id", mw.RequirePermission("pledges", "delete"), DeletePledge)

	recurring := authed.Group("/recurring-donations")
	recurring.GET("", mw.RequirePermission("recurring_donations", "read"), ListRecurringDonations)
	recurring.POST("", mw.RequirePermission("recurring_donations", "create"), CreateRecurringDonation)
	recurring.POST("/process", mw.RequirePermission("recurring_donations", "update"), ProcessRecurringDonations)
	recurring.GET("/:id", mw.RequirePermission("recurring_donations", "read"), GetRecurringDonation)
	recurring.PUT("/:id", mw.RequirePermission("recurring_donations", "update"), UpdateRecurringDonation)
	recurring.DELETE("/:id", mw.RequirePermission("recurring_donations", "delete"), DeleteRecurringDonation)
	recurring.POST("/:id/pause", mw.RequirePermission("recurring_donations", "update"), recurringTransition("paused"))
	recurring.POST("/:id/resume", mw.RequirePermission("recurring_donations", "update"), recurringTransition("active"))
	recurring.POST("/:id/cancel", mw.RequirePermission("recurring_donations", "update"), recurringTransition("cancelled"))

	budgets := authed.Group("/budgets")
	budgets.GET("", mw.RequirePermission("budgets", "read"), ListBudgets)
	budgets.POST("", mw.RequirePermission("budgets", "create"), CreateBudget)
	budgets.GET("/:id", mw.RequirePermission("budgets", "read"), GetBudget)
	budgets.PUT("/:id", mw.RequirePermission("budgets", "update"), UpdateBudget)
	budgets.DELETE("/:id", mw.RequirePermission("budgets", "delete"), DeleteBudget)

	expenses := authed.Group("/expenses")
	expenses.GET("", mw.RequirePermission("expenses", "read"), ListExpenses)
	expenses.POST("", mw.RequirePermission("expenses", "create"), CreateExpense)
	expenses.GET("/:id", mw.RequirePermission("expenses", "read"), GetExpense)
	expenses.PUT("/:id", mw.RequirePermission("expenses", "update"), UpdateExpense)
	expenses.DELETE("/:id", mw.RequirePermission("expenses", "delete"), DeleteExpense)
	expenses.POST("/:id/approve", mw.RequirePermission("expenses", "update"), ApproveExpense)
	expenses.POST("/:id/reject", mw.RequirePermission("expenses", "update"), RejectExpense)
	expenses.POST("/:id/pay", mw.RequirePermission("expenses", "update"), MarkExpensePaid)
	expenses.POST("/:id/receipt", mw.RequirePermission("expenses", "update"), UploadExpenseReceipt)

	receipts := authed.Group("/tax-receipts")
	receipts.GET("", mw.RequirePermission("tax_receipts", "read"), ListTaxReceipts)
	receipts.POST("", mw.RequirePermission("tax_receipts", "create"), GenerateTaxReceipt)
	receipts.POST("/annual", mw.RequirePermission("tax_receipts", "create"), GenerateAnnualTaxReceipts)
	receipts.GET("/:id", mw.RequirePermission("tax_receipts", "read"), GetTaxReceipt)
	receipts.GET("/:id/pdf", mw.RequirePermission("tax_receipts", "read"), DownloadTaxReceiptPdf)
	receipts.POST("/:id/send", mw.RequirePermission("tax_receipts", "update"), SendTaxReceipt)
	receipts.POST("/:id/void", mw.RequirePermission("tax_receipts", "update"), VoidTaxReceipt)

	payments := authed.Group("/payments")
	payments.GET("", mw.RequirePermission("payments", "read"), ListPayments)
	payments.POST("", mw.RequirePermission("payments", "create"), CreateManualPayment)
	payments.GET("/:id", mw.RequirePermission("payments", "read"), GetPayment)

	reports := authed.Group("/reports")
	reports.GET("/financial-summary", mw.RequirePermission("reports", "read"), FinancialSummaryReport)
	reports.GET("/financial-summary/export", mw.RequirePermission("reports", "export"), ExportFinancialSummary)
	reports.GET("/monthly-donations", mw.RequirePermission("reports", "read"), MonthlyDonationsReport)
	reports.GET("/donations-by-category", mw.RequirePermission("reports", "read"), DonationsByCategoryReport)
	reports.GET("/top-donors", mw.RequirePermission("reports", "read"), TopDonorsReport)
	reports.GET("/budget-utilization", mw.RequirePermission("reports", "read"), BudgetUtilizationReport)
	reports.GET("/budget-variance", mw.RequirePermission("reports", "read"), BudgetVarianceReport)
	reports.GET("/campaign-progress", mw.RequirePermission("reports", "read"), CampaignProgressReport)
	reports.GET("/member-engagement", mw.RequirePermission("reports", "read"), MemberEngagementReport)

	authed.POST("/ledger/reconcile", mw.RequirePermission("ledger", "update"), ReconcileLedger)
	authed.GET("/ledger/drift", mw.RequirePermission("ledger", "read"), LedgerDrift)
	authed.GET("/history", mw.RequirePermission("history", "read"), ListHistory)
	authed.POST("/outbox/:id/replay", mw.RequireAdmin(), ReplayOutboxMessage)
}
