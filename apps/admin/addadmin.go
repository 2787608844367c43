package main

import (
	"context"
	"time"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/member"
)

// addAdmin creates an admin account, or promotes an existing member. Admin
// accounts bypass the approval gate, so the profile is stored approved.
func (cli *commandLine) addAdmin(email, name, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	m, err := cli.memberRepo.GetMemberByEmail(ctx, email)
	if err != nil {
		if err != member.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		m = member.Member{
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = m.SetPassword(pwd); err != nil {
			return err
		}
		p := member.Profile{
			FullName:  name,
			Status:    member.StatusApproved,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if m, err = cli.memberRepo.CreateMember(ctx, m, p); err != nil {
			return err
		}
	}

	if _, err = cli.memberRepo.SetMemberRole(ctx, m.ID, member.RoleAdmin); err != nil {
		return err
	}
	if _, err = cli.memberRepo.SetProfileStatus(ctx, m.ID, member.StatusApproved); err != nil {
		return err
	}
	return nil
}
