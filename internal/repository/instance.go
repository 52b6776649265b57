package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"gateway/internal/models"
)

type InstanceRepository interface {
	RegisterInstance(instance *models.Instance) error
	UpdateInstance(instance *models.Instance) error
}

type instanceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewInstanceRepository(db *sqlx.DB, logger *zap.Logger) InstanceRepository {
	return &instanceRepository{db: db, logger: logger}
}

func (r *instanceRepository) RegisterInstance(instance *models.Instance) error {
	query := `INSERT INTO instances (instance_id, module_id, version, started_at, status)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(query, instance.InstanceID, instance.ModuleID, instance.Version,
		instance.StartedAt, instance.Status)
	return err
}

func (r *instanceRepository) UpdateInstance(instance *models.Instance) error {
	query := `UPDATE instances SET status = $2, stopped_at = $3 WHERE instance_id = $1`
	_, err := r.db.Exec(query, instance.InstanceID, instance.Status, instance.StoppedAt)
	return err
}
