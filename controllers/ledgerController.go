package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

type ledgerResult struct {
	Fixed  bool                  `json:"fixed"`
	Drifts []*models.LedgerDrift `json:"drifts"`
}

func reconcile(c *gin.Context, fix bool) {
	drifts, err := models.ReconcileLedgers(c.Request.Context(), fix)
	if err != nil {
		respondError(c, err)
		return
	}
	out := ledgerResult{Fixed: fix, Drifts: make([]*models.LedgerDrift, 0, len(drifts))}
	for i := range drifts {
		out.Drifts = append(out.Drifts, &drifts[i])
	}
	respondOK(c, out)
}

// ReconcileLedger recomputes every derived total from source rows and rewrites any that drifted.
func ReconcileLedger(c *gin.Context) { reconcile(c, true) }

// LedgerDrift reports drift without fixing it.
func LedgerDrift(c *gin.Context) { reconcile(c, false) }

func ListHistory(c *gin.Context) { list(c, models.ListHistories) }

func ReplayOutboxMessage(c *gin.Context) { transition(c, models.ReplayOutboxMessage) }
