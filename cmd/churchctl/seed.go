package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the layout of seed.yaml:
//
//	admin:
//	  username: pastor
//	  name: Pastor Admin
//	  password: change-me
//	roles:
//	  - name: Treasurer
//	    modules:
//	      donations: read;create;update;export
//	      reports: read;export
//	budgets:
//	  - name: Youth ministry
//	    category: ministry
//	    fiscal_year: 2025
//	    period_start: 2025-01-01
//	    period_end: 2025-12-31
//	    allocated_amount: "5000"
type seedFile struct {
	Admin   *seedAdmin   `yaml:"admin"`
	Roles   []seedRole   `yaml:"roles"`
	Budgets []seedBudget `yaml:"budgets"`
}

type seedAdmin struct {
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type seedRole struct {
	Name    string            `yaml:"name"`
	Modules map[string]string `yaml:"modules"`
}

type seedBudget struct {
	Name            string `yaml:"name"`
	Category        string `yaml:"category"`
	FiscalYear      int    `yaml:"fiscal_year"`
	PeriodStart     string `yaml:"period_start"`
	PeriodEnd       string `yaml:"period_end"`
	AllocatedAmount string `yaml:"allocated_amount"`
	Status          string `yaml:"status"`
	Notes           string `yaml:"notes"`
}

type seedResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error
	return count > 0, err
}

// applySeed creates what the file describes; rows that already exist by name are left alone.
func applySeed(ctx context.Context, f *seedFile) (*seedResult, error) {
	res := &seedResult{}
	for _, r := range f.Roles {
		label := "role " + r.Name
		found, err := exists(ctx, &models.Role{}, "name = ?", r.Name)
		if err != nil {
			return res, err
		}
		if found {
			res.Skipped = append(res.Skipped, label)
			continue
		}
		input := &models.NewRole{Name: r.Name}
		for module, actions := range r.Modules {
			input.AllowedModules = append(input.AllowedModules, &models.NewAllowedModule{ModuleName: module, AllowedActions: actions})
		}
		if _, err := models.CreateRole(ctx, input); err != nil {
			return res, fmt.Errorf("%s: %w", label, err)
		}
		res.Created = append(res.Created, label)
	}

	if a := f.Admin; a != nil {
		label := "user " + a.Username
		found, err := exists(ctx, &models.User{}, "username = ?", a.Username)
		if err != nil {
			return res, err
		}
		if found {
			res.Skipped = append(res.Skipped, label)
		} else {
			_, err := models.CreateUser(ctx, &models.NewUser{
				Username: a.Username,
				Name:     a.Name,
				Email:    a.Email,
				Password: a.Password,
				IsActive: utils.NewTrue(),
				Role:     models.UserRoleAdmin,
			})
			if err != nil {
				return res, fmt.Errorf("%s: %w", label, err)
			}
			res.Created = append(res.Created, label)
		}
	}

	for _, b := range f.Budgets {
		label := fmt.Sprintf("budget %s %d", b.Name, b.FiscalYear)
		found, err := exists(ctx, &models.Budget{}, "name = ? AND fiscal_year = ?", b.Name, b.FiscalYear)
		if err != nil {
			return res, err
		}
		if found {
			res.Skipped = append(res.Skipped, label)
			continue
		}
		input, err := b.toInput()
		if err != nil {
			return res, fmt.Errorf("%s: %w", label, err)
		}
		if _, err := models.CreateBudget(ctx, input); err != nil {
			return res, fmt.Errorf("%s: %w", label, err)
		}
		res.Created = append(res.Created, label)
	}
	return res, nil
}

func (b seedBudget) toInput() (*models.NewBudget, error) {
	start, err := time.Parse("2006-01-02", b.PeriodStart)
	if err != nil {
		return nil, fmt.Errorf("period_start: %w", err)
	}
	end, err := time.Parse("2006-01-02", b.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("period_end: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(b.AllocatedAmount))
	if err != nil {
		return nil, fmt.Errorf("allocated_amount: %w", err)
	}
	status := models.BudgetStatus(b.Status)
	if status == "" {
		status = models.BudgetStatusActive
	}
	return &models.NewBudget{
		Name:            b.Name,
		Category:        b.Category,
		FiscalYear:      b.FiscalYear,
		PeriodStart:     start,
		PeriodEnd:       end,
		AllocatedAmount: amount,
		Status:          status,
		Notes:           b.Notes,
	}, nil
}

var seedPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load roles, the admin user and budgets from a yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		fh, err := os.Open(seedPath)
		if err != nil {
			return err
		}
		defer fh.Close()
		f, err := parseSeed(fh)
		if err != nil {
			return err
		}
		res, err := applySeed(systemContext(cmd), f)
		if res != nil {
			_ = printJSON(cmd, res)
		}
		return err
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedPath, "file", "f", "seed.yaml", "seed file")
	rootCmd.AddCommand(seedCmd)
}
