package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

const actorColumns = `id, role, name, email, rating, balance`

func scanActor(row interface{ Scan(...any) error }) (*model.Actor, error) {
	var a model.Actor
	var rating sql.NullFloat64
	var balance decimal.NullDecimal
	if err := row.Scan(&a.ID, &a.Role, &a.Name, &a.Email, &rating, &balance); err != nil {
		return nil, err
	}
	if rating.Valid {
		r := rating.Float64
		a.Rating = &r
	}
	if balance.Valid {
		b := balance.Decimal
		a.Balance = &b
	}
	return &a, nil
}

// ActorByRole returns the mock identity for a role, or nil if none exists.
func (s *Store) ActorByRole(role model.Role) (*model.Actor, error) {
	a, err := scanActor(s.db.QueryRow(`SELECT `+actorColumns+` FROM actors WHERE role = ?`, role))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetActor returns an actor by ID, or nil if not found.
func (s *Store) GetActor(id string) (*model.Actor, error) {
	a, err := scanActor(s.db.QueryRow(`SELECT `+actorColumns+` FROM actors WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListActors returns every mock identity.
func (s *Store) ListActors() ([]model.Actor, error) {
	rows, err := s.db.Query(`SELECT ` + actorColumns + ` FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actors []model.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, *a)
	}
	return actors, rows.Err()
}

// ErrBelowMinimum is returned by ClaimPayout when the wallet holds less
// than the minimum payout.
var ErrBelowMinimum = errors.New("balance below minimum payout")

// payoutAttempts bounds the retries when credits keep landing between the
// read and the swap.
const payoutAttempts = 5

// ClaimPayout empties a wallet holding at least minimum and returns the
// amount paid out. Below the minimum it returns the balance with
// ErrBelowMinimum. A credit that lands mid-claim is never wiped: the wallet
// is only zeroed if it still holds the balance that was read.
func (s *Store) ClaimPayout(id string, minimum decimal.Decimal) (decimal.Decimal, error) {
	for range payoutAttempts {
		var stored sql.NullString
		err := s.db.QueryRow(`SELECT balance FROM actors WHERE id = ?`, id).Scan(&stored)
		if err != nil {
			return decimal.Zero, fmt.Errorf("actor %s: %w", id, err)
		}
		balance := decimal.Zero
		if stored.Valid {
			if balance, err = decimal.NewFromString(stored.String); err != nil {
				return decimal.Zero, fmt.Errorf("actor %s balance: %w", id, err)
			}
		}
		if balance.LessThan(minimum) {
			return balance, ErrBelowMinimum
		}

		res, err := s.db.Exec(`UPDATE actors SET balance = '0.00' WHERE id = ? AND balance = ?`, id, stored.String)
		if err != nil {
			return decimal.Zero, fmt.Errorf("claim payout: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return decimal.Zero, err
		}
		if n == 1 {
			slog.Info("payout claimed", "actor_id", id, "amount", balance.StringFixed(2))
			return balance, nil
		}
		slog.Debug("balance changed during payout, retrying", "actor_id", id)
	}
	return decimal.Zero, fmt.Errorf("claim payout for %s: balance kept changing", id)
}
