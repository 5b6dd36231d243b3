package implementation

import (
	"context"
	"database/sql"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetUser(ctx context.Context, id string) (*rntmodels.User, error) {
	query := `SELECT id, name, role, COALESCE(push_token, '') FROM users WHERE id = $1`

	var user rntmodels.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Name, &user.Role, &user.PushToken)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) ListOperators(ctx context.Context) ([]rntmodels.User, error) {
	query := `SELECT id, name, role, COALESCE(push_token, '') FROM users WHERE role = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, rntmodels.RoleOperator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]rntmodels.User, 0)
	for rows.Next() {
		var user rntmodels.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Role, &user.PushToken); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
