package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"gateway/internal/models"
)

type ModuleRepository interface {
	GetRoutes() ([]*models.ModuleRoute, error)
}

type moduleRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewModuleRepository(db *sqlx.DB, logger *zap.Logger) ModuleRepository {
	return &moduleRepository{db: db, logger: logger}
}

// GetRoutes returns all module routes ordered by priority, so the first entry
// per category is the one in effect.
func (r *moduleRepository) GetRoutes() ([]*models.ModuleRoute, error) {
	var routes []*models.ModuleRoute
	query := `SELECT module_id, category, exchange, routing_key, priority FROM module_routes ORDER BY priority`
	err := r.db.Select(&routes, query)
	if err != nil {
		return nil, err
	}
	return routes, nil
}
