package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedalhub/rental-service/internal/domain"
)

// ErrBikeUnavailable is returned when a rental targets a bike that is not available.
var ErrBikeUnavailable = errors.New("bike is not available")

// ErrUnknownRenter is returned when a rental names a user that does not exist.
var ErrUnknownRenter = errors.New("renter does not exist")

const invalidTextRepresentation = "22P02"

// RentalFilter captures listing parameters.
type RentalFilter struct {
	UserID   *string
	BikeID   *string
	Statuses []domain.RentalStatus
	Limit    int
	Offset   int
}

// RentalRepository encapsulates rental persistence. Create and Close keep the
// bike status in step with the rental inside one transaction.
type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	Close(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id string) (*domain.Rental, error)
	List(ctx context.Context, filter RentalFilter) ([]domain.Rental, error)
	HasActiveForBike(ctx context.Context, bikeID string) (bool, error)
}

type rentalRepository struct {
	pool *pgxpool.Pool
}

// NewRentalRepository instantiates repository.
func NewRentalRepository(pool *pgxpool.Pool) RentalRepository {
	return &rentalRepository{pool: pool}
}

const rentalColumns = `id, user_id, bike_id, start_time, end_time, returned_at, total_cost, status, created_at, updated_at`

func (r *rentalRepository) Create(ctx context.Context, rental *domain.Rental) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx,
			`UPDATE bikes SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
			domain.BikeStatusRented, rental.BikeID, domain.BikeStatusAvailable)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrBikeUnavailable
		}

		const query = `
            INSERT INTO rentals (user_id, bike_id, start_time, end_time, total_cost, status)
            VALUES ($1,$2,$3,$4,$5,$6)
            RETURNING id, created_at, updated_at`
		err = tx.QueryRow(ctx, query,
			rental.UserID,
			rental.BikeID,
			rental.StartTime,
			rental.EndTime,
			rental.TotalCost,
			rental.Status,
		).Scan(&rental.ID, &rental.CreatedAt, &rental.UpdatedAt)
		return rentalInsertError(err)
	})
}

// rentalInsertError maps constraint failures on rentals to sentinel errors.
// The active-rental unique index fires when a booking races another one.
func rentalInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return ErrBikeUnavailable
	case foreignKeyViolation, invalidTextRepresentation:
		return ErrUnknownRenter
	}
	return err
}

func (r *rentalRepository) Close(ctx context.Context, rental *domain.Rental) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            UPDATE rentals SET status=$1, returned_at=$2, total_cost=$3, updated_at=NOW()
            WHERE id=$4 AND status=$5
            RETURNING updated_at`
		if err := tx.QueryRow(ctx, query,
			rental.Status,
			rental.ReturnedAt,
			rental.TotalCost,
			rental.ID,
			domain.RentalStatusActive,
		).Scan(&rental.UpdatedAt); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE bikes SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
			domain.BikeStatusAvailable, rental.BikeID, domain.BikeStatusRented)
		return err
	})
}

func (r *rentalRepository) GetByID(ctx context.Context, id string) (*domain.Rental, error) {
	var rental domain.Rental
	if err := r.pool.QueryRow(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id=$1`, id).Scan(
		&rental.ID,
		&rental.UserID,
		&rental.BikeID,
		&rental.StartTime,
		&rental.EndTime,
		&rental.ReturnedAt,
		&rental.TotalCost,
		&rental.Status,
		&rental.CreatedAt,
		&rental.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) List(ctx context.Context, filter RentalFilter) ([]domain.Rental, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.BikeID != nil {
		args = append(args, *filter.BikeID)
		clauses = append(clauses, fmt.Sprintf("bike_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM rentals WHERE %s ORDER BY start_time DESC LIMIT %d OFFSET %d`,
		rentalColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Rental
	for rows.Next() {
		var rental domain.Rental
		if err := rows.Scan(
			&rental.ID,
			&rental.UserID,
			&rental.BikeID,
			&rental.StartTime,
			&rental.EndTime,
			&rental.ReturnedAt,
			&rental.TotalCost,
			&rental.Status,
			&rental.CreatedAt,
			&rental.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rental)
	}
	return result, rows.Err()
}

func (r *rentalRepository) HasActiveForBike(ctx context.Context, bikeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rentals WHERE bike_id=$1 AND status=$2)`,
		bikeID, domain.RentalStatusActive,
	).Scan(&exists)
	return exists, err
}
