package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"gorm.io/gorm"
)

// Engagement weights.
const (
	attendanceWeight = 4
	groupWeight      = 3
	donationWeight   = 2
	messageWeight    = 1
)

const defaultEngagementLimit = 25

type MemberEngagementRow struct {
	MemberId         int                     `json:"member_id"`
	Name             string                  `json:"name"`
	MembershipStatus models.MembershipStatus `json:"membership_status"`
	Attendance       int64                   `json:"attendance"`
	ActiveGroups     int64                   `json:"active_groups"`
	Donations        int64                   `json:"donations"`
	Messages         int64                   `json:"messages"`
	Score            int64                   `json:"score"`
}

func (r *MemberEngagementRow) score() {
	r.Score = attendanceWeight*r.Attendance + groupWeight*r.ActiveGroups +
		donationWeight*r.Donations + messageWeight*r.Messages
}

type memberCount struct {
	MemberId int
	Count    int64
}

func countByMember(q *gorm.DB) (map[int]int64, error) {
	var rows []memberCount
	if err := q.Select("member_id, COUNT(*) AS count").Group("member_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]int64, len(rows))
	for _, r := range rows {
		out[r.MemberId] = r.Count
	}
	return out, nil
}

// GetMemberEngagement scores activity over the trailing twelve months.
// Ties are broken by member id.
func GetMemberEngagement(ctx context.Context, limit int) ([]*MemberEngagementRow, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultEngagementLimit
	}
	return cached(ctx, "MemberEngagement", limit, func(ctx context.Context) ([]*MemberEngagementRow, error) {
		db := config.GetDB().WithContext(ctx)
		since := time.Now().UTC().AddDate(-1, 0, 0)

		attendance, err := countByMember(db.Model(&models.Attendance{}).Where("checked_in_at >= ?", since))
		if err != nil {
			return nil, err
		}
		groups, err := countByMember(db.Model(&models.GroupMember{}).Where("status = ?", models.ActiveStatusActive))
		if err != nil {
			return nil, err
		}
		donations, err := countByMember(db.Model(&models.Donation{}).
			Where("member_id IS NOT NULL AND status = ? AND donation_date >= ?", models.DonationStatusCompleted, since))
		if err != nil {
			return nil, err
		}
		messages, err := countByMember(db.Model(&models.GroupMessage{}).Where("created_at >= ?", since))
		if err != nil {
			return nil, err
		}

		rows := make(map[int]*MemberEngagementRow)
		row := func(id int) *MemberEngagementRow {
			r, ok := rows[id]
			if !ok {
				r = &MemberEngagementRow{MemberId: id}
				rows[id] = r
			}
			return r
		}
		for id, n := range attendance {
			row(id).Attendance = n
		}
		for id, n := range groups {
			row(id).ActiveGroups = n
		}
		for id, n := range donations {
			row(id).Donations = n
		}
		for id, n := range messages {
			row(id).Messages = n
		}

		ranked := make([]*MemberEngagementRow, 0, len(rows))
		for _, r := range rows {
			r.score()
			ranked = append(ranked, r)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Score != ranked[j].Score {
				return ranked[i].Score > ranked[j].Score
			}
			return ranked[i].MemberId < ranked[j].MemberId
		})
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}

		ids := make([]int, 0, len(ranked))
		for _, r := range ranked {
			ids = append(ids, r.MemberId)
		}
		members, err := models.GetMembersByIds(ctx, ids)
		if err != nil {
			return nil, err
		}
		byId := make(map[int]*models.Member, len(members))
		for _, m := range members {
			byId[m.ID] = m
		}
		out := ranked[:0]
		for _, r := range ranked {
			m, ok := byId[r.MemberId]
			if !ok {
				continue
			}
			r.Name = m.FullName()
			r.MembershipStatus = m.MembershipStatus
			out = append(out, r)
		}
		return out, nil
	})
}
