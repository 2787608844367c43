package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
)

type memberRepository struct {
	db *DB
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db *DB) *memberRepository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) CheckEmailUniqueness(_ context.Context, email string, excluded ...member.Member) error {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	excludedIDs := make(map[string]struct{}, len(excluded))
	for _, m := range excluded {
		excludedIDs[m.ID] = struct{}{}
	}
	for _, m := range repo.db.member.members {
		if _, ok := excludedIDs[m.ID]; ok {
			continue
		}
		if m.Email == email {
			return member.ErrEmailExists
		}
	}
	return nil
}

func (repo *memberRepository) CreateMember(_ context.Context, m member.Member, p member.Profile) (member.Member, error) {
	repo.db.member.Lock()
	m.ID = uuid.NewString()
	p.MemberID = m.ID
	repo.db.member.members[m.ID] = &m
	repo.db.member.profiles[m.ID] = &p
	repo.db.member.Unlock()

	// publish outside the lock; a subscriber may read the table synchronously
	repo.db.publish(live.Change{Table: notify.TableProfiles, Op: live.OpInsert, New: profileRow(p)})
	return m, nil
}

func (repo *memberRepository) GetMemberByID(_ context.Context, id string) (member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	if m, ok := repo.db.member.members[id]; ok {
		return *m, nil
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) GetMemberByEmail(_ context.Context, email string) (member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	for _, m := range repo.db.member.members {
		if m.Email == email {
			return *m, nil
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryAllMembers(_ context.Context) ([]member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	members := make([]member.Member, 0, len(repo.db.member.members))
	for _, m := range repo.db.member.members {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func (repo *memberRepository) FilterMembers(ctx context.Context, filter member.QueryFilter) ([]member.Member, error) {
	if filter.IsEmpty() {
		return repo.QueryAllMembers(ctx)
	}

	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	var members []member.Member
	for _, m := range repo.db.member.members {
		p := repo.db.member.profiles[m.ID]
		if !matchMember(*m, p, filter) {
			continue
		}
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func matchMember(m member.Member, p *member.Profile, filter member.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		ok := strings.Contains(strings.ToLower(m.Email), search)
		if !ok && p != nil {
			ok = strings.Contains(strings.ToLower(p.FullName), search)
		}
		if !ok {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var ok bool
		for _, role := range filter.Roles {
			if m.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		if p == nil {
			return false
		}
		var ok bool
		for _, status := range filter.Statuses {
			if p.Status == status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filter.IsActive != nil && m.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && m.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && m.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *memberRepository) SetMemberRole(_ context.Context, id string, role member.Role) (member.Member, error) {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	m, ok := repo.db.member.members[id]
	if !ok {
		return member.Member{}, member.ErrNotFound
	}
	m.Role = role
	return *m, nil
}

func (repo *memberRepository) SetLastLogin(_ context.Context, m member.Member) (member.Member, error) {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	cur, ok := repo.db.member.members[m.ID]
	if !ok {
		return member.Member{}, member.ErrNotFound
	}
	cur.LastLogin.SetValid(time.Now().UTC())
	return *cur, nil
}

func (repo *memberRepository) SetPassword(_ context.Context, id string, hash []byte) error {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	m, ok := repo.db.member.members[id]
	if !ok {
		return member.ErrNotFound
	}
	m.PasswordHash = hash
	return nil
}

func (repo *memberRepository) DeleteMembersByID(_ context.Context, ids ...string) error {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	for _, id := range ids {
		delete(repo.db.member.members, id)
		delete(repo.db.member.profiles, id)
	}
	return nil
}

func (repo *memberRepository) GetRole(_ context.Context, principalID string) (member.Role, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	m, ok := repo.db.member.members[principalID]
	if !ok {
		return "", member.ErrNotFound
	}
	if !m.Role.Valid() {
		return "", member.ErrNoRole
	}
	return m.Role, nil
}

func (repo *memberRepository) GetProfile(_ context.Context, principalID string) (member.Profile, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	if p, ok := repo.db.member.profiles[principalID]; ok {
		return *p, nil
	}
	return member.Profile{}, member.ErrProfileNotFound
}

func (repo *memberRepository) SaveProfile(_ context.Context, principalID string, up member.UpdateProfile) (member.Profile, error) {
	repo.db.member.Lock()
	p, ok := repo.db.member.profiles[principalID]
	if !ok {
		repo.db.member.Unlock()
		return member.Profile{}, member.ErrProfileNotFound
	}
	old := profileRow(*p)
	p.FullName = up.FullName
	p.Phone.SetValid(up.Phone)
	p.Address.SetValid(up.Address)
	updated := *p
	repo.db.member.Unlock()

	repo.db.publish(live.Change{Table: notify.TableProfiles, Op: live.OpUpdate, Old: old, New: profileRow(updated)})
	return updated, nil
}

func (repo *memberRepository) SetProfileStatus(_ context.Context, principalID string, status member.Status) (member.Profile, error) {
	repo.db.member.Lock()
	p, ok := repo.db.member.profiles[principalID]
	if !ok {
		repo.db.member.Unlock()
		return member.Profile{}, member.ErrProfileNotFound
	}
	old := profileRow(*p)
	p.Status = status
	updated := *p
	repo.db.member.Unlock()

	repo.db.publish(live.Change{Table: notify.TableProfiles, Op: live.OpUpdate, Old: old, New: profileRow(updated)})
	return updated, nil
}

func profileRow(p member.Profile) live.Row {
	return live.Row{
		"member_id": p.MemberID,
		"full_name": p.FullName,
		"phone":     p.Phone.String,
		"address":   p.Address.String,
		"status":    string(p.Status),
	}
}
