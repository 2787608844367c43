package main

import (
	"context"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/member"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	m, err := cli.memberRepo.GetMemberByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	var hashed member.Member
	if err := hashed.SetPassword(pwd); err != nil {
		return err
	}
	return cli.memberRepo.SetPassword(ctx, m.ID, hashed.PasswordHash)
}
