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

	"github.com/masjidku/backend/core/donation"
)

type donationRepository struct {
	db *sqlx.DB
}

var _ donation.Repository = (*donationRepository)(nil) // interface compliance check

func NewDonationRepository(db *sqlx.DB) *donationRepository {
	return &donationRepository{db: db}
}

type donationRow struct {
	ID         string      `db:"id"`
	MemberID   string      `db:"member_id"`
	Kind       string      `db:"kind"`
	Amount     int64       `db:"amount"`
	Note       null.String `db:"note"`
	Status     string      `db:"status"`
	VerifiedBy null.String `db:"verified_by"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r donationRow) toDonation() donation.Donation {
	return donation.Donation{
		ID:         r.ID,
		MemberID:   r.MemberID,
		Kind:       donation.Kind(r.Kind),
		Amount:     r.Amount,
		Note:       r.Note,
		Status:     donation.Status(r.Status),
		VerifiedBy: r.VerifiedBy,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func (repo *donationRepository) CreateDonation(ctx context.Context, d donation.Donation) (donation.Donation, error) {
	var row donationRow
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO donations (member_id, kind, amount, note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING *`,
		d.MemberID, string(d.Kind), d.Amount, d.Note, string(d.Status), d.CreatedAt,
	).StructScan(&row)
	if err != nil {
		return donation.Donation{}, errors.Wrap(err, "inserting donation")
	}
	return row.toDonation(), nil
}

func (repo *donationRepository) GetDonationByID(ctx context.Context, id string) (donation.Donation, error) {
	var row donationRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM donations WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return donation.Donation{}, donation.ErrNotFound
	}
	if err != nil {
		return donation.Donation{}, errors.Wrap(err, "getting donation")
	}
	return row.toDonation(), nil
}

func (repo *donationRepository) FilterDonations(ctx context.Context, filter donation.QueryFilter) ([]donation.Donation, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	q := `SELECT * FROM donations`
	if filter.MemberID != "" {
		conds = append(conds, fmt.Sprintf("member_id = %s", arg(filter.MemberID)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conds = append(conds, fmt.Sprintf("status = ANY(%s)", arg(pq.Array(statuses))))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []donationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering donations")
	}
	donations := make([]donation.Donation, 0, len(rows))
	for _, row := range rows {
		donations = append(donations, row.toDonation())
	}
	return donations, nil
}

func (repo *donationRepository) SetDonationStatus(ctx context.Context, id string, status donation.Status, verifierID string) (donation.Donation, error) {
	var row donationRow
	err := repo.db.QueryRowxContext(ctx, `
		UPDATE donations SET status = $2, verified_by = NULLIF($3, '')::uuid, updated_at = now()
		WHERE id = $1
		RETURNING *`,
		id, string(status), verifierID,
	).StructScan(&row)
	if err == sql.ErrNoRows {
		return donation.Donation{}, donation.ErrNotFound
	}
	if err != nil {
		return donation.Donation{}, errors.Wrap(err, "setting donation status")
	}
	return row.toDonation(), nil
}

func (repo *donationRepository) SumDonations(ctx context.Context) (donation.Totals, error) {
	var totals donation.Totals
	err := repo.db.QueryRowxContext(ctx, `
		SELECT
			coalesce(sum(amount) FILTER (WHERE status = 'pending'), 0)  AS pending,
			coalesce(sum(amount) FILTER (WHERE status = 'verified'), 0) AS verified,
			coalesce(sum(amount) FILTER (WHERE status = 'rejected'), 0) AS rejected
		FROM donations`,
	).Scan(&totals.Pending, &totals.Verified, &totals.Rejected)
	if err != nil {
		return donation.Totals{}, errors.Wrap(err, "summing donations")
	}
	return totals, nil
}
