package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/gen/ent/company"
)

type Company struct {
	Name            string
	DefaultCurrency string
	TaxRate         float64
}

type CompanyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ent.Company, error)
	CreateCompany(ctx context.Context, c *Company) (*ent.Company, error)
	ListCompanies(ctx context.Context) ([]*ent.Company, error)
	UpdatePriceBook(ctx context.Context, id uuid.UUID, priceBook json.RawMessage) (*ent.Company, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type companyRepository struct {
	client *ent.Client
	logger *slog.Logger
}

func NewCompanyRepository(client *ent.Client, logger *slog.Logger) CompanyRepository {
	return &companyRepository{
		client: client,
		logger: logger,
	}
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*ent.Company, error) {
	return r.client.Company.
		Query().
		Where(company.ID(id)).
		Only(ctx)
}

func (r *companyRepository) CreateCompany(ctx context.Context, c *Company) (*ent.Company, error) {
	row, err := r.client.Company.Create().
		SetName(c.Name).
		SetDefaultCurrency(c.DefaultCurrency).
		SetTaxRate(c.TaxRate).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to create company", "name", c.Name, "currency", c.DefaultCurrency, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *companyRepository) ListCompanies(ctx context.Context) ([]*ent.Company, error) {
	list, err := r.client.Company.Query().Order(company.ByCreatedAt()).All(ctx)
	if err != nil {
		r.logger.Error("failed to list companies", "error", err)
		return nil, err
	}
	return list, nil
}

func (r *companyRepository) UpdatePriceBook(ctx context.Context, id uuid.UUID, priceBook json.RawMessage) (*ent.Company, error) {
	row, err := r.client.Company.UpdateOneID(id).
		SetPriceBook(priceBook).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to update price book", "company_id", id, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *companyRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	exists, err := r.client.Company.Query().Where(company.ID(id)).Exist(ctx)
	if err != nil {
		r.logger.Error("failed to check company existence", "company_id", id, "error", err)
		return false, err
	}
	return exists, nil
}
