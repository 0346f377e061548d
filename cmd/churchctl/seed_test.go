package main

import (
	"strings"
	"testing"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
admin:
  username: pastor
  name: Pastor Admin
  password: change-me-please
roles:
  - name: Treasurer
    modules:
      donations: read;create;export
      reports: read
budgets:
  - name: Youth ministry
    category: ministry
    fiscal_year: 2025
    period_start: 2025-01-01
    period_end: 2025-12-31
    allocated_amount: "5000"
`

func TestApplySeedIsIdempotent(t *testing.T) {
	testhelper.SetupDB(t)
	ctx := testhelper.AdminContext()

	f, err := parseSeed(strings.NewReader(sampleSeed))
	require.NoError(t, err)

	res, err := applySeed(ctx, f)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"role Treasurer", "user pastor", "budget Youth ministry 2025"}, res.Created)

	res, err = applySeed(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Skipped, 3)

	_, err = models.Login(ctx, "pastor", "change-me-please")
	require.NoError(t, err)

	var role models.Role
	require.NoError(t, config.GetDB().Where("name = ?", "Treasurer").First(&role).Error)
	perms, err := models.GetPermissionsFromRole(ctx, role.ID)
	require.NoError(t, err)
	assert.True(t, perms["donations.export"])
	assert.False(t, perms["donations.delete"])
}

func TestParseSeedRejectsUnknownKeys(t *testing.T) {
	_, err := parseSeed(strings.NewReader("admins:\n  username: x\n"))
	assert.Error(t, err)
}

func TestSeedBudgetValidatesDates(t *testing.T) {
	_, err := seedBudget{Name: "x", PeriodStart: "01/01/2025", PeriodEnd: "2025-12-31", AllocatedAmount: "1"}.toInput()
	assert.ErrorContains(t, err, "period_start")
}
