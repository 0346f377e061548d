package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/church_backend/models"
)

func getMembers(ctx context.Context, ids []int) []*dataloader.Result[*models.Member] {
	results, err := models.GetMembersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Member](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetMember(ctx context.Context, id int) (*models.Member, error) {
	loaders := For(ctx)
	return loaders.MemberLoader.Load(ctx, id)()
}

// GetMembers returns members in id order; unknown ids come back nil.
func GetMembers(ctx context.Context, ids []int) ([]*models.Member, []error) {
	loaders := For(ctx)
	return loaders.MemberLoader.LoadMany(ctx, ids)()
}

func memberNames(ctx context.Context, ids []int) (map[int]*models.Member, error) {
	out := make(map[int]*models.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	members, errs := GetMembers(ctx, ids)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, m := range members {
		if m != nil {
			out[ids[i]] = m
		}
	}
	return out, nil
}

// HydrateDonations fills member_name on each donation; anonymous gifts are left blank.
func HydrateDonations(ctx context.Context, donations []*models.Donation) error {
	var ids []int
	for _, d := range donations {
		if d.MemberId != nil {
			ids = append(ids, *d.MemberId)
		}
	}
	members, err := memberNames(ctx, ids)
	if err != nil {
		return err
	}
	for _, d := range donations {
		if d.MemberId == nil {
			continue
		}
		if m, ok := members[*d.MemberId]; ok {
			d.MemberName = m.FullName()
		}
	}
	return nil
}

func HydrateGroupMembers(ctx context.Context, rows []*models.GroupMember) error {
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.MemberId)
	}
	members, err := memberNames(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range rows {
		r.Member = members[r.MemberId]
	}
	return nil
}

func HydrateGroupMessages(ctx context.Context, rows []*models.GroupMessage) error {
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.MemberId)
	}
	members, err := memberNames(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range rows {
		r.Member = members[r.MemberId]
	}
	return nil
}

func HydrateAttendance(ctx context.Context, rows []*models.Attendance) error {
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.MemberId)
	}
	members, err := memberNames(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range rows {
		r.Member = members[r.MemberId]
	}
	return nil
}
