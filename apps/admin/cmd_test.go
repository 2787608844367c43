package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/masjidku/backend/core/member"
	dummydb "github.com/masjidku/backend/storage/database/dummy"
)

var memberRepo member.Repository

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open(nil)
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	memberRepo = dummydb.NewMemberRepository(db)

	// db stays nil; only migrate needs it and tests mock migrationRunFunc
	return &commandLine{
		memberRepo: memberRepo,
	}
}

func createMember(t *testing.T, email, name, pwd string, role member.Role, status member.Status) member.Member {
	t.Helper()

	now := time.Now().UTC()
	m := member.Member{Email: email, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := m.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	p := member.Profile{FullName: name, Status: status, CreatedAt: now, UpdatedAt: now}
	m, err := memberRepo.CreateMember(context.Background(), m, p)
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	return m
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrationRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "donation", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	existing := createMember(t, "takmir@test.id", "Pak Takmir", "Sabar&Tawakal1", member.RoleJamaah, member.StatusPending)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"addadmin", "-email", "imam@test.id"}, wantErr: errHelp},
		{name: "empty password", args: []string{"addadmin", "-email", "imam@test.id", "-name", "Pak Imam"}, wantErr: errHelp},
		{name: "new admin", args: []string{"addadmin", "-email", "imam@test.id", "-name", "Pak Imam"}, extra: extra{pwd: "Sabar&Tawakal1"}},
		{name: "promote existing member", args: []string{"addadmin", "-email", existing.Email, "-name", "Pak Takmir"}, extra: extra{pwd: "Sabar&Tawakal1"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			email := tt.args[2]
			m, err := memberRepo.GetMemberByEmail(ctx, email)
			if err != nil {
				t.Fatalf("GetMemberByEmail() failed: %v", err)
			}
			if m.Role != member.RoleAdmin {
				t.Errorf("Role = %v, want %v", m.Role, member.RoleAdmin)
			}
			p, err := memberRepo.GetProfile(ctx, m.ID)
			if err != nil {
				t.Fatalf("GetProfile() failed: %v", err)
			}
			if p.Status != member.StatusApproved {
				t.Errorf("Status = %v, want %v", p.Status, member.StatusApproved)
			}
		})
	}
}

func Test_commandLine_approve(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	pending := createMember(t, "jamaah@test.id", "Jamaah Baru", "Sabar&Tawakal1", member.RoleJamaah, member.StatusPending)

	tests := []cliTest{
		{name: "no args", args: []string{"approve"}, wantErr: errHelp},
		{name: "member not found", args: []string{"approve", "-email", "ghost@test.id"}, wantErr: member.ErrNotFound},
		{name: "approve pending member", args: []string{"approve", "-email", pending.Email}},
		{name: "approve is idempotent", args: []string{"approve", "-email", pending.Email}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			p, err := memberRepo.GetProfile(ctx, pending.ID)
			if err != nil {
				t.Fatalf("GetProfile() failed: %v", err)
			}
			if p.Status != member.StatusApproved {
				t.Errorf("Status = %v, want %v", p.Status, member.StatusApproved)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := createMember(t, "jamaah@test.id", "Jamaah Lama", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", usr.Email}, wantErr: errHelp},
		{name: "member not found", args: []string{"resetpassword", "-email", "ghost@test.id"}, extra: extra{pwd: "lol"}, wantErr: member.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "Ikhlas&Istiqomah2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := memberRepo.GetMemberByID(ctx, usr.ID)
				if err != nil {
					t.Fatalf("GetMemberByID() failed: %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				if err := refreshed.CheckPassword("Ikhlas&Istiqomah2"); err != nil {
					t.Errorf("CheckPassword() failed: %v", err)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
