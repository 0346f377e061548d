package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
)

type CampaignProgressRow struct {
	CampaignId int                   `json:"campaign_id"`
	Name       string                `json:"name"`
	Status     models.CampaignStatus `json:"status"`
	StartDate  time.Time             `json:"start_date"`
	EndDate    time.Time             `json:"end_date"`
	DaysLeft   int                   `json:"days_left"`
	models.Progress
}

type ProjectProgressRow struct {
	ProjectId int                  `json:"project_id"`
	Name      string               `json:"name"`
	Status    models.ProjectStatus `json:"status"`
	models.Progress
}

type CampaignProgressResponse struct {
	Campaigns []*CampaignProgressRow `json:"campaigns"`
	Projects  []*ProjectProgressRow  `json:"projects"`
}

// GetCampaignProgress lists every campaign that was not cancelled along with all projects.
func GetCampaignProgress(ctx context.Context) (*CampaignProgressResponse, error) {
	return cached(ctx, "CampaignProgress", nil, func(ctx context.Context) (*CampaignProgressResponse, error) {
		db := config.GetDB().WithContext(ctx)

		var campaigns []*models.Campaign
		if err := db.Where("status <> ?", models.CampaignStatusCancelled).
			Order("start_date DESC, id").Find(&campaigns).Error; err != nil {
			return nil, err
		}
		var projects []*models.Project
		if err := db.Order("start_date DESC, id").Find(&projects).Error; err != nil {
			return nil, err
		}

		today := time.Now().UTC()
		resp := &CampaignProgressResponse{
			Campaigns: make([]*CampaignProgressRow, 0, len(campaigns)),
			Projects:  make([]*ProjectProgressRow, 0, len(projects)),
		}
		for _, c := range campaigns {
			daysLeft := int(c.EndDate.Sub(today).Hours() / 24)
			if daysLeft < 0 {
				daysLeft = 0
			}
			resp.Campaigns = append(resp.Campaigns, &CampaignProgressRow{
				CampaignId: c.ID,
				Name:       c.Name,
				Status:     c.Status,
				StartDate:  c.StartDate,
				EndDate:    c.EndDate,
				DaysLeft:   daysLeft,
				Progress:   c.Progress(),
			})
		}
		for _, p := range projects {
			resp.Projects = append(resp.Projects, &ProjectProgressRow{
				ProjectId: p.ID,
				Name:      p.Name,
				Status:    p.Status,
				Progress:  p.Progress(),
			})
		}
		return resp, nil
	})
}
