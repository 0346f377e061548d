package models

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleStaff UserRole = "S"
)

type MembershipStatus string

const (
	MembershipStatusVisitor  MembershipStatus = "visitor"
	MembershipStatusRegular  MembershipStatus = "regular"
	MembershipStatusMember   MembershipStatus = "member"
	MembershipStatusInactive MembershipStatus = "inactive"
)

type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusInactive GroupStatus = "inactive"
	GroupStatusArchived GroupStatus = "archived"
)

type GroupMemberRole string

const (
	GroupMemberRoleLeader GroupMemberRole = "leader"
	GroupMemberRoleMember GroupMemberRole = "member"
)

type ActiveStatus string

const (
	ActiveStatusActive   ActiveStatus = "active"
	ActiveStatusInactive ActiveStatus = "inactive"
)

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

type AttendanceReferenceType string

const (
	AttendanceReferenceEvent      AttendanceReferenceType = "events"
	AttendanceReferenceGroupEvent AttendanceReferenceType = "group_events"
)

type DonationCategory string

const (
	DonationCategoryTithe       DonationCategory = "tithe"
	DonationCategoryOffering    DonationCategory = "offering"
	DonationCategoryBuilding    DonationCategory = "building"
	DonationCategoryMissions    DonationCategory = "missions"
	DonationCategoryBenevolence DonationCategory = "benevolence"
	DonationCategoryOther       DonationCategory = "other"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOnline       PaymentMethod = "online"
)

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusRefunded  DonationStatus = "refunded"
	DonationStatusFailed    DonationStatus = "failed"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
)

type Frequency string

const (
	FrequencyOneTime   Frequency = "one_time"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

type PledgeStatus string

const (
	PledgeStatusActive    PledgeStatus = "active"
	PledgeStatusFulfilled PledgeStatus = "fulfilled"
	PledgeStatusCancelled PledgeStatus = "cancelled"
	PledgeStatusOverdue   PledgeStatus = "overdue"
)

type RecurringStatus string

const (
	RecurringStatusActive    RecurringStatus = "active"
	RecurringStatusPaused    RecurringStatus = "paused"
	RecurringStatusCancelled RecurringStatus = "cancelled"
	RecurringStatusCompleted RecurringStatus = "completed"
)

type BudgetStatus string

const (
	BudgetStatusDraft  BudgetStatus = "draft"
	BudgetStatusActive BudgetStatus = "active"
	BudgetStatusClosed BudgetStatus = "closed"
)

type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
	ExpenseStatusPaid     ExpenseStatus = "paid"
)

type TaxReceiptStatus string

const (
	TaxReceiptStatusIssued TaxReceiptStatus = "issued"
	TaxReceiptStatusSent   TaxReceiptStatus = "sent"
	TaxReceiptStatusVoid   TaxReceiptStatus = "void"
)

type PaymentGateway string

const (
	PaymentGatewayStripe PaymentGateway = "stripe"
	PaymentGatewayManual PaymentGateway = "manual"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type OutboxEventType string

const (
	OutboxEventDonationCompleted OutboxEventType = "donation.completed"
	OutboxEventTaxReceiptIssued  OutboxEventType = "tax_receipt.issued"
	OutboxEventPledgeReminder    OutboxEventType = "pledge.reminder"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const (
	HistoryActionCreate = "CREATE"
	HistoryActionUpdate = "UPDATE"
	HistoryActionDelete = "DELETE"
	HistoryActionStatus = "STATUS"
)
