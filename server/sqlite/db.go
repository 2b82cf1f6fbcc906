package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/botsman/psd2cert/app/dbrepository"
	"github.com/botsman/psd2cert/app/models"
)

// NewSQLiteRepo creates a TppRepository backed by SQLite, using the given database file path.
func NewSQLiteRepo(ctx context.Context, path string) (*TppSqliteRepository, error) {
	dbConn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := dbConn.PingContext(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}
	return &TppSqliteRepository{db: dbConn}, nil
}

type TppSqliteRepository struct {
	db *sql.DB
}

func NewTppSqliteRepository(db *sql.DB) *TppSqliteRepository {
	return &TppSqliteRepository{db: db}
}

func (r *TppSqliteRepository) Close() error {
	return r.db.Close()
}

func (r *TppSqliteRepository) GetTpp(ctx context.Context, id string) (*models.TPP, error) {
	row := r.db.QueryRowContext(ctx, `SELECT name_latin, name_native, id, ob_id, authority, country, type, registry, authorized_at, withdrawn_at, created_at, updated_at FROM tpps WHERE ob_id = ?`, id)
	tpp := &models.TPP{}
	var authorizedAt, withdrawnAt, createdAt, updatedAt sql.NullTime
	err := row.Scan(&tpp.NameLatin, &tpp.NameNative, &tpp.Id, &tpp.OBID, &tpp.Authority, &tpp.Country, &tpp.Type, &tpp.Registry, &authorizedAt, &withdrawnAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", dbrepository.ErrTppNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if authorizedAt.Valid {
		tpp.AuthorizedAt = &authorizedAt.Time
	}
	if withdrawnAt.Valid {
		tpp.WithdrawnAt = &withdrawnAt.Time
	}
	tpp.CreatedAt = createdAt.Time
	tpp.UpdatedAt = updatedAt.Time

	services := make(map[string][]models.Service)
	rows, err := r.db.QueryContext(ctx, `SELECT country, service FROM tpp_services WHERE tpp_ob_id = ?`, tpp.OBID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var country, service string
		if err := rows.Scan(&country, &service); err != nil {
			return nil, err
		}
		services[country] = append(services[country], models.Service(service))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	tpp.Services = services

	return tpp, nil
}

var _ dbrepository.TppRepository = (*TppSqliteRepository)(nil)
