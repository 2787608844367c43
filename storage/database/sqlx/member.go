package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/masjidku/backend/core/member"
)

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

type memberRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	Role         null.String `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r memberRow) toMember() member.Member {
	return member.Member{
		ID:           r.ID,
		Email:        r.Email,
		Role:         member.Role(r.Role.String),
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin,
	}
}

type profileRow struct {
	MemberID  string      `db:"member_id"`
	FullName  string      `db:"full_name"`
	Phone     null.String `db:"phone"`
	Address   null.String `db:"address"`
	Status    string      `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r profileRow) toProfile() member.Profile {
	return member.Profile{
		MemberID:  r.MemberID,
		FullName:  r.FullName,
		Phone:     r.Phone,
		Address:   r.Address,
		Status:    member.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo *memberRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...member.Member) error {
	q := `SELECT count(*) FROM members WHERE email = $1`
	args := []interface{}{email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, m := range excluded {
			ids = append(ids, m.ID)
		}
		q += ` AND NOT (id = ANY($2))`
		args = append(args, pq.Array(ids))
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return member.ErrEmailExists
	}
	return nil
}

func (repo *memberRepository) CreateMember(ctx context.Context, m member.Member, p member.Profile) (member.Member, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var row memberRow
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO members (email, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $5)
		RETURNING *`,
		m.Email, string(m.Role), m.IsActive, m.PasswordHash, m.CreatedAt,
	).StructScan(&row)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "inserting member")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (member_id, full_name, phone, address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		row.ID, p.FullName, p.Phone, p.Address, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "inserting profile")
	}

	if err = tx.Commit(); err != nil {
		return member.Member{}, errors.Wrap(err, "committing tx")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) GetMemberByID(ctx context.Context, id string) (member.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM members WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "getting member by id")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) GetMemberByEmail(ctx context.Context, email string) (member.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM members WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "getting member by email")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) QueryAllMembers(ctx context.Context) ([]member.Member, error) {
	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM members ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

func (repo *memberRepository) FilterMembers(ctx context.Context, filter member.QueryFilter) ([]member.Member, error) {
	if filter.IsEmpty() {
		return repo.QueryAllMembers(ctx)
	}
	filter.Clean()

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	q := `SELECT m.* FROM members m JOIN profiles p ON p.member_id = m.id`
	if filter.Search != "" {
		ph := arg("%" + strings.ToLower(filter.Search) + "%")
		conds = append(conds, fmt.Sprintf("(lower(m.email) LIKE %s OR lower(p.full_name) LIKE %s)", ph, ph))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		conds = append(conds, fmt.Sprintf("m.role = ANY(%s)", arg(pq.Array(roles))))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conds = append(conds, fmt.Sprintf("p.status = ANY(%s)", arg(pq.Array(statuses))))
	}
	if filter.IsActive != nil {
		conds = append(conds, fmt.Sprintf("m.is_active = %s", arg(*filter.IsActive)))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, fmt.Sprintf("m.created_at >= %s", arg(filter.CreatedFrom)))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, fmt.Sprintf("m.created_at <= %s", arg(filter.CreatedTo)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY m.created_at"

	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering members")
	}
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

func (repo *memberRepository) SetMemberRole(ctx context.Context, id string, role member.Role) (member.Member, error) {
	var row memberRow
	err := repo.db.QueryRowxContext(ctx, `
		UPDATE members SET role = NULLIF($2, ''), updated_at = now() WHERE id = $1 RETURNING *`,
		id, string(role),
	).StructScan(&row)
	if err == sql.ErrNoRows {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "setting member role")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) SetLastLogin(ctx context.Context, m member.Member) (member.Member, error) {
	var row memberRow
	err := repo.db.QueryRowxContext(ctx, `
		UPDATE members SET last_login = now() WHERE id = $1 RETURNING *`, m.ID,
	).StructScan(&row)
	if err == sql.ErrNoRows {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "setting last login")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) SetPassword(ctx context.Context, id string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE members SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return errors.Wrap(err, "setting password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return member.ErrNotFound
	}
	return nil
}

func (repo *memberRepository) DeleteMembersByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM members WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting members")
}

func (repo *memberRepository) GetRole(ctx context.Context, principalID string) (member.Role, error) {
	var role null.String
	err := repo.db.GetContext(ctx, &role, `SELECT role FROM members WHERE id = $1`, principalID)
	if err == sql.ErrNoRows {
		return "", member.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "getting role")
	}
	if !role.Valid {
		return "", member.ErrNoRole
	}
	return member.Role(role.String), nil
}

func (repo *memberRepository) GetProfile(ctx context.Context, principalID string) (member.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM profiles WHERE member_id = $1`, principalID)
	if err == sql.ErrNoRows {
		return member.Profile{}, member.ErrProfileNotFound
	}
	if err != nil {
		return member.Profile{}, errors.Wrap(err, "getting profile")
	}
	return row.toProfile(), nil
}

func (repo *memberRepository) SaveProfile(ctx context.Context, principalID string, up member.UpdateProfile) (member.Profile, error) {
	var row profileRow
	err := repo.db.QueryRowxContext(ctx, `
		UPDATE profiles
		SET full_name = $2, phone = NULLIF($3, ''), address = NULLIF($4, ''), updated_at = now()
		WHERE member_id = $1
		RETURNING *`,
		principalID, up.FullName, up.Phone, up.Address,
	).StructScan(&row)
	if err == sql.ErrNoRows {
		return member.Profile{}, member.ErrProfileNotFound
	}
	if err != nil {
		return member.Profile{}, errors.Wrap(err, "saving profile")
	}
	return row.toProfile(), nil
}

func (repo *memberRepository) SetProfileStatus(ctx context.Context, principalID string, status member.Status) (member.Profile, error) {
	var row profileRow
	err := repo.db.QueryRowxContext(ctx, `
		UPDATE profiles SET status = $2, updated_at = now() WHERE member_id = $1 RETURNING *`,
		principalID, string(status),
	).StructScan(&row)
	if err == sql.ErrNoRows {
		return member.Profile{}, member.ErrProfileNotFound
	}
	if err != nil {
		return member.Profile{}, errors.Wrap(err, "setting profile status")
	}
	return row.toProfile(), nil
}
