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

// ErrReferenced is returned when deleting a bike that rentals still point at.
var ErrReferenced = errors.New("record is still referenced")

// ErrStatusChanged is returned when a bike's status moved since it was read.
var ErrStatusChanged = errors.New("bike status changed since it was read")

const foreignKeyViolation = "23503"

// BikeFilter captures catalogue search parameters.
type BikeFilter struct {
	Statuses   []domain.BikeStatus
	Types      []domain.BikeType
	Location   *string
	MaxRate    *float64
	SearchTerm *string
	Limit      int
	Offset     int
}

// BikeRepository encapsulates fleet persistence.
type BikeRepository interface {
	Create(ctx context.Context, bike *domain.Bike) error
	// Update writes bike only while its stored status still equals expected.
	Update(ctx context.Context, bike *domain.Bike, expected domain.BikeStatus) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Bike, error)
	List(ctx context.Context, filter BikeFilter) ([]domain.Bike, error)
}

type bikeRepository struct {
	pool *pgxpool.Pool
}

// NewBikeRepository instantiates repository.
func NewBikeRepository(pool *pgxpool.Pool) BikeRepository {
	return &bikeRepository{pool: pool}
}

const bikeColumns = `id, name, model, type, description, location, hourly_rate, status, image_url, created_at, updated_at`

func (r *bikeRepository) Create(ctx context.Context, bike *domain.Bike) error {
	const query = `
        INSERT INTO bikes (name, model, type, description, location, hourly_rate, status, image_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		bike.Name,
		bike.Model,
		bike.Type,
		bike.Description,
		bike.Location,
		bike.HourlyRate,
		bike.Status,
		bike.ImageURL,
	).Scan(&bike.ID, &bike.CreatedAt, &bike.UpdatedAt)
}

func (r *bikeRepository) Update(ctx context.Context, bike *domain.Bike, expected domain.BikeStatus) error {
	const query = `
        UPDATE bikes SET name=$1, model=$2, type=$3, description=$4, location=$5,
            hourly_rate=$6, status=$7, image_url=$8, updated_at=NOW()
        WHERE id=$9 AND status=$10
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		bike.Name,
		bike.Model,
		bike.Type,
		bike.Description,
		bike.Location,
		bike.HourlyRate,
		bike.Status,
		bike.ImageURL,
		bike.ID,
		expected,
	).Scan(&bike.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bikes WHERE id=$1)`, bike.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStatusChanged
	}
	return pgx.ErrNoRows
}

func (r *bikeRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM bikes WHERE id=$1`, id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrReferenced
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *bikeRepository) GetByID(ctx context.Context, id string) (*domain.Bike, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bikeColumns+` FROM bikes WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bikes, err := scanBikes(rows)
	if err != nil {
		return nil, err
	}
	if len(bikes) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &bikes[0], nil
}

func (r *bikeRepository) List(ctx context.Context, filter BikeFilter) ([]domain.Bike, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, bikeType := range filter.Types {
			args = append(args, bikeType)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Location != nil {
		args = append(args, *filter.Location)
		clauses = append(clauses, fmt.Sprintf("location=$%d", len(args)))
	}
	if filter.MaxRate != nil {
		args = append(args, *filter.MaxRate)
		clauses = append(clauses, fmt.Sprintf("hourly_rate <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SearchTerm))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(model) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM bikes WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		bikeColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBikes(rows)
}

func scanBikes(rows pgx.Rows) ([]domain.Bike, error) {
	var result []domain.Bike
	for rows.Next() {
		var bike domain.Bike
		if err := rows.Scan(
			&bike.ID,
			&bike.Name,
			&bike.Model,
			&bike.Type,
			&bike.Description,
			&bike.Location,
			&bike.HourlyRate,
			&bike.Status,
			&bike.ImageURL,
			&bike.CreatedAt,
			&bike.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, bike)
	}
	return result, rows.Err()
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
