package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/gen/ent/rugphoto"
)

// CreatePhotoParams records one uploaded photo against a rug.
type CreatePhotoParams struct {
	RugID       uuid.UUID
	CompanyID   uuid.UUID
	StoragePath string
	ContentType string
	ByteSize    int
}

type RugPhotoRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ent.RugPhoto, error)
	ListByRug(ctx context.Context, rugID uuid.UUID) ([]*ent.RugPhoto, error)
	Create(ctx context.Context, p *CreatePhotoParams) (*ent.RugPhoto, error)
	UpsertByPath(ctx context.Context, p *CreatePhotoParams) (*ent.RugPhoto, bool, error)
	CountByRug(ctx context.Context, rugID uuid.UUID) (int, error)
}

type rugPhotoRepo struct {
	ent    *ent.Client
	logger *slog.Logger
}

func NewRugPhotoRepository(entc *ent.Client, logger *slog.Logger) RugPhotoRepository {
	return &rugPhotoRepo{
		ent:    entc,
		logger: logger,
	}
}

func (r *rugPhotoRepo) GetByID(ctx context.Context, id uuid.UUID) (*ent.RugPhoto, error) {
	return r.ent.RugPhoto.Get(ctx, id)
}

func (r *rugPhotoRepo) ListByRug(ctx context.Context, rugID uuid.UUID) ([]*ent.RugPhoto, error) {
	rows, err := r.ent.RugPhoto.Query().
		Where(rugphoto.RugID(rugID)).
		Order(rugphoto.ByUploadedAt()).
		All(ctx)
	if err != nil {
		r.logger.Error("failed to list rug photos", "rug_id", rugID, "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *rugPhotoRepo) Create(ctx context.Context, p *CreatePhotoParams) (*ent.RugPhoto, error) {
	row, err := r.ent.RugPhoto.Create().
		SetRugID(p.RugID).
		SetCompanyID(p.CompanyID).
		SetStoragePath(p.StoragePath).
		SetContentType(p.ContentType).
		SetByteSize(p.ByteSize).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to create rug photo", "rug_id", p.RugID, "storage_path", p.StoragePath, "error", err)
		return nil, err
	}
	return row, nil
}

// UpsertByPath tolerates replayed uploads: an existing row for the same
// rug and storage path is returned instead of a duplicate.
func (r *rugPhotoRepo) UpsertByPath(ctx context.Context, p *CreatePhotoParams) (*ent.RugPhoto, bool, error) {
	existing, err := r.ent.RugPhoto.Query().
		Where(rugphoto.RugID(p.RugID), rugphoto.StoragePath(p.StoragePath)).
		Only(ctx)
	if err == nil {
		return existing, true, nil
	}
	if !ent.IsNotFound(err) {
		r.logger.Error("failed to look up rug photo by path", "rug_id", p.RugID, "storage_path", p.StoragePath, "error", err)
		return nil, false, err
	}
	row, err := r.Create(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return row, false, nil
}

func (r *rugPhotoRepo) CountByRug(ctx context.Context, rugID uuid.UUID) (int, error) {
	n, err := r.ent.RugPhoto.Query().
		Where(rugphoto.RugID(rugID)).
		Count(ctx)
	if err != nil {
		r.logger.Error("failed to count rug photos", "rug_id", rugID, "error", err)
		return 0, err
	}
	return n, nil
}
