package models

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var ledgerTracer = otel.Tracer("github.com/mmdatafocus/church_backend/models/ledger")

// LedgerTarget is one running total: a row of campaigns, projects, pledges or budgets.
type LedgerTarget struct {
	Table string
	Id    int
}

// LedgerTargets are the totals touched by one mutation. Invalidate after commit.
type LedgerTargets []LedgerTarget

func (targets LedgerTargets) Invalidate() {
	for _, t := range targets {
		var err error
		switch t.Table {
		case "campaigns":
			err = utils.RemoveRedisBoth[Campaign](t.Id)
		case "projects":
			err = utils.RemoveRedisBoth[Project](t.Id)
		case "pledges":
			err = utils.RemoveRedisBoth[Pledge](t.Id)
		case "budgets":
			err = utils.RemoveRedisBoth[Budget](t.Id)
		}
		if err != nil {
			config.LogError(config.GetLogger(), "models", "LedgerTargets.Invalidate", t.Table, t.Id, err)
		}
	}
}

// ledger columns per table; table order is also the lock order
var ledgerColumns = map[string]string{
	"budgets":   "spent_amount",
	"campaigns": "raised_amount",
	"pledges":   "fulfilled_amount",
	"projects":  "current_amount",
}

// CountsTowardLedger reports whether the donation adds to campaign, project and pledge totals.
func (d *Donation) CountsTowardLedger() bool {
	return d != nil && d.Status == DonationStatusCompleted
}

func (e *Expense) CountsTowardLedger() bool {
	return e != nil && e.BudgetId != nil && (e.Status == ExpenseStatusApproved || e.Status == ExpenseStatusPaid)
}

func addDelta(deltas map[LedgerTarget]decimal.Decimal, table string, id *int, amount decimal.Decimal) {
	if id == nil || *id == 0 {
		return
	}
	key := LedgerTarget{Table: table, Id: *id}
	deltas[key] = deltas[key].Add(amount)
}

func donationDeltas(before, after *Donation) map[LedgerTarget]decimal.Decimal {
	deltas := make(map[LedgerTarget]decimal.Decimal)
	if before.CountsTowardLedger() {
		neg := before.Amount.Neg()
		addDelta(deltas, "campaigns", before.CampaignId, neg)
		addDelta(deltas, "projects", before.ProjectId, neg)
		addDelta(deltas, "pledges", before.PledgeId, neg)
	}
	if after.CountsTowardLedger() {
		addDelta(deltas, "campaigns", after.CampaignId, after.Amount)
		addDelta(deltas, "projects", after.ProjectId, after.Amount)
		addDelta(deltas, "pledges", after.PledgeId, after.Amount)
	}
	return deltas
}

func expenseDeltas(before, after *Expense) map[LedgerTarget]decimal.Decimal {
	deltas := make(map[LedgerTarget]decimal.Decimal)
	if before.CountsTowardLedger() {
		addDelta(deltas, "budgets", before.BudgetId, before.Amount.Neg())
	}
	if after.CountsTowardLedger() {
		addDelta(deltas, "budgets", after.BudgetId, after.Amount)
	}
	return deltas
}

// ApplyDonationChange moves a donation's contribution from before to after.
// before is nil on create, after is nil on delete. Must run inside the mutation's transaction.
func ApplyDonationChange(tx *gorm.DB, before, after *Donation) (LedgerTargets, error) {
	return applyDeltas(tx, "ApplyDonationChange", donationDeltas(before, after))
}

// ApplyExpenseChange is ApplyDonationChange for budget spend.
func ApplyExpenseChange(tx *gorm.DB, before, after *Expense) (LedgerTargets, error) {
	return applyDeltas(tx, "ApplyExpenseChange", expenseDeltas(before, after))
}

func applyDeltas(tx *gorm.DB, name string, deltas map[LedgerTarget]decimal.Decimal) (LedgerTargets, error) {
	_, span := ledgerTracer.Start(tx.Statement.Context, "ledger."+name)
	defer span.End()

	targets := make(LedgerTargets, 0, len(deltas))
	for t, d := range deltas {
		if !d.IsZero() {
			targets = append(targets, t)
		}
	}
	// stable lock order keeps two concurrent mutations from deadlocking
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Table != targets[j].Table {
			return targets[i].Table < targets[j].Table
		}
		return targets[i].Id < targets[j].Id
	})
	span.SetAttributes(attribute.Int("ledger.targets", len(targets)))

	for _, t := range targets {
		var err error
		switch t.Table {
		case "campaigns":
			err = adjustLedger[Campaign](tx, t.Id, deltas[t])
		case "projects":
			err = adjustLedger[Project](tx, t.Id, deltas[t])
		case "budgets":
			err = adjustLedger[Budget](tx, t.Id, deltas[t])
		case "pledges":
			err = adjustLedger[Pledge](tx, t.Id, deltas[t])
			if err == nil {
				err = syncPledgeStatus(tx, t.Id)
			}
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	return targets, nil
}

// adjustLedger locks the row and applies col = col + delta, version = version + 1.
func adjustLedger[T any](tx *gorm.DB, id int, delta decimal.Decimal) error {
	table := tx.NamingStrategy.TableName(utils.GetTypeName[T]())
	column := ledgerColumns[table]
	if _, err := utils.LockModel[T](tx, id); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return fmt.Errorf("ledger target %s %d: %w", table, id, err)
		}
		return err
	}
	res := tx.Model(new(T)).Where("id = ?", id).Updates(map[string]interface{}{
		column:    gorm.Expr(column+" + ?", delta),
		"version": gorm.Expr("version + 1"),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("ledger target %s %d: expected 1 row updated, got %d", table, id, res.RowsAffected)
	}
	return nil
}

// syncPledgeStatus flips active/overdue <-> fulfilled after the fulfilled amount moved.
func syncPledgeStatus(tx *gorm.DB, id int) error {
	var pledge Pledge
	if err := tx.First(&pledge, id).Error; err != nil {
		return err
	}
	next := pledge.Status
	switch pledge.Status {
	case PledgeStatusActive, PledgeStatusOverdue:
		if pledge.FulfilledAmount.GreaterThanOrEqual(pledge.Amount) {
			next = PledgeStatusFulfilled
		}
	case PledgeStatusFulfilled:
		if pledge.FulfilledAmount.LessThan(pledge.Amount) {
			next = PledgeStatusActive
		}
	}
	if next == pledge.Status {
		return nil
	}
	if err := tx.Model(&pledge).Update("status", next).Error; err != nil {
		return err
	}
	return SaveHistoryStatus(tx, "pledges", id, fmt.Sprintf("pledge %s -> %s", pledge.Status, next))
}

// LedgerDrift is a running total that does not match its recomputed sum.
type LedgerDrift struct {
	Table    string          `json:"table"`
	Id       int             `json:"id"`
	Column   string          `json:"column"`
	Recorded decimal.Decimal `json:"recorded"`
	Expected decimal.Decimal `json:"expected"`
	Fixed    bool            `json:"fixed"`
}

type ledgerSum struct {
	TargetId int
	Total    decimal.Decimal
}

type ledgerRow struct {
	Id    int
	Value decimal.Decimal
}

// ReconcileLedgers recomputes every running total from its source rows.
// With fix, drifted totals are overwritten with the recomputed value.
func ReconcileLedgers(ctx context.Context, fix bool) ([]LedgerDrift, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.ReconcileLedgers")
	defer span.End()

	db := config.GetDB().WithContext(ctx)
	completed := db.Model(&Donation{}).Where("status = ?", DonationStatusCompleted)
	spent := db.Model(&Expense{}).Where("status IN ?", []ExpenseStatus{ExpenseStatusApproved, ExpenseStatusPaid})

	checks := []struct {
		table  string
		source *gorm.DB
		fk     string
	}{
		{"campaigns", completed, "campaign_id"},
		{"projects", completed, "project_id"},
		{"pledges", completed, "pledge_id"},
		{"budgets", spent, "budget_id"},
	}

	drifts := []LedgerDrift{}
	for _, c := range checks {
		var sums []ledgerSum
		err := c.source.Session(&gorm.Session{}).
			Select(c.fk + " AS target_id, SUM(amount) AS total").
			Where(c.fk + " IS NOT NULL").
			Group(c.fk).
			Scan(&sums).Error
		if err != nil {
			return nil, err
		}
		expected := make(map[int]decimal.Decimal, len(sums))
		for _, s := range sums {
			expected[s.TargetId] = s.Total
		}

		column := ledgerColumns[c.table]
		var rows []ledgerRow
		if err := db.Table(c.table).Select("id, " + column + " AS value").Order("id").Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			want := expected[r.Id]
			if r.Value.Equal(want) {
				continue
			}
			drifts = append(drifts, LedgerDrift{
				Table:    c.table,
				Id:       r.Id,
				Column:   column,
				Recorded: r.Value,
				Expected: want,
			})
		}
	}
	span.SetAttributes(attribute.Int("ledger.drifts", len(drifts)))
	if !fix || len(drifts) == 0 {
		return drifts, nil
	}

	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		for i := range drifts {
			d := &drifts[i]
			err := tx.Table(d.Table).Where("id = ?", d.Id).Updates(map[string]interface{}{
				d.Column:  d.Expected,
				"version": gorm.Expr("version + 1"),
			}).Error
			if err != nil {
				return err
			}
			if d.Table == "pledges" {
				if err := syncPledgeStatus(tx, d.Id); err != nil {
					return err
				}
			}
			d.Fixed = true
			touched = append(touched, LedgerTarget{Table: d.Table, Id: d.Id})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	config.GetLogger().WithField("drifts", len(drifts)).Warn("ledger drift corrected")
	return drifts, nil
}
