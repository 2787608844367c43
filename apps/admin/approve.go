package main

import (
	"context"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/member"
)

func (cli *commandLine) approve(email string) error {
	ctx := context.Background()
	m, err := cli.memberRepo.GetMemberByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	_, err = cli.memberRepo.SetProfileStatus(ctx, m.ID, member.StatusApproved)
	return err
}
