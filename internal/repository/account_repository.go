package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/elearn-backend/internal/database"
	"github.com/stemsi/elearn-backend/internal/model"
)

var (
	ErrDuplicateEmail   = errors.New("account with this email already exists")
	ErrUnknownRole      = errors.New("unknown account role")
	ErrNoActivationFlag = errors.New("account role has no activation flag")
)

// accountTable describes where and how one account variant is stored.
type accountTable struct {
	table   string
	columns string
	scan    func(row pgx.Row) (model.Account, error)
}

var accountTables = map[model.Role]accountTable{
	model.RoleAdmin: {
		table:   "admins",
		columns: "id, username, email, password_hash, created_at",
		scan: func(row pgx.Row) (model.Account, error) {
			a := &model.AdminAccount{}
			if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
				return nil, err
			}
			return a, nil
		},
	},
	model.RoleTeacher: {
		table:   "enseignants",
		columns: "id, username, email, password_hash, module, is_activated, created_at",
		scan: func(row pgx.Row) (model.Account, error) {
			a := &model.TeacherAccount{}
			if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Module, &a.IsActivated, &a.CreatedAt); err != nil {
				return nil, err
			}
			return a, nil
		},
	},
	model.RoleStudent: {
		table:   "etudiants",
		columns: "id, username, email, password_hash, class_id, is_activated, created_at",
		scan: func(row pgx.Row) (model.Account, error) {
			a := &model.StudentAccount{}
			if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.ClassID, &a.IsActivated, &a.CreatedAt); err != nil {
				return nil, err
			}
			return a, nil
		},
	},
}

func tableFor(role model.Role) (accountTable, error) {
	t, ok := accountTables[role]
	if !ok {
		return accountTable{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return t, nil
}

// AccountRepository handles account data access for every role.
type AccountRepository struct {
	db database.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByEmail loads the account of the given role with this email.
func (r *AccountRepository) GetByEmail(ctx context.Context, role model.Role, email string) (model.Account, error) {
	t, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `SELECT `+t.columns+` FROM `+t.table+` WHERE email = $1`, email)
	return t.scan(row)
}

// GetByID loads the account of the given role with this id.
func (r *AccountRepository) GetByID(ctx context.Context, role model.Role, id int) (model.Account, error) {
	t, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `SELECT `+t.columns+` FROM `+t.table+` WHERE id = $1`, id)
	return t.scan(row)
}

// Create inserts a new account. The table is chosen by the concrete variant.
func (r *AccountRepository) Create(ctx context.Context, account model.Account) error {
	var err error
	switch a := account.(type) {
	case *model.AdminAccount:
		err = r.db.QueryRow(ctx,
			`INSERT INTO admins (username, email, password_hash)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			a.Username, a.Email, a.PasswordHash,
		).Scan(&a.ID, &a.CreatedAt)
	case *model.TeacherAccount:
		err = r.db.QueryRow(ctx,
			`INSERT INTO enseignants (username, email, password_hash, module, is_activated)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			a.Username, a.Email, a.PasswordHash, a.Module, a.IsActivated,
		).Scan(&a.ID, &a.CreatedAt)
	case *model.StudentAccount:
		err = r.db.QueryRow(ctx,
			`INSERT INTO etudiants (username, email, password_hash, class_id, is_activated)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			a.Username, a.Email, a.PasswordHash, a.ClassID, a.IsActivated,
		).Scan(&a.ID, &a.CreatedAt)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownRole, account)
	}

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// SetActivation flips the activation flag of a teacher or student.
// Returns pgx.ErrNoRows when no such account exists.
func (r *AccountRepository) SetActivation(ctx context.Context, role model.Role, id int, active bool) error {
	if role == model.RoleAdmin {
		return ErrNoActivationFlag
	}
	t, err := tableFor(role)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE `+t.table+` SET is_activated = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
