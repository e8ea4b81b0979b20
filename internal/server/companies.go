package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/utils"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type CompanyServer struct {
	rugflowpb.UnimplementedCompaniesServiceServer
	companyRepo repository.CompanyRepository
	logger      *slog.Logger
}

func NewCompanyServer(companyRepo repository.CompanyRepository, logger *slog.Logger) *CompanyServer {
	return &CompanyServer{
		companyRepo: companyRepo,
		logger:      logger,
	}
}

// staffOnly rejects client callers. Company management is not job
// scoped, so the job permission matrix does not apply here.
func staffOnly(ctx context.Context) error {
	if common.UserRoleFromContext(ctx) == constants.RoleClient {
		return status.Error(codes.PermissionDenied, "This action is not available to clients.")
	}
	return nil
}

func (s *CompanyServer) CreateCompany(ctx context.Context, req *rugflowpb.CreateCompanyRequest) (*rugflowpb.CreateCompanyResponse, error) {
	if err := staffOnly(ctx); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.GetName())
	if name == "" {
		s.logger.Error("create company request missing name")
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.GetDefaultCurrency()))
	if len(currency) != 3 {
		return nil, status.Error(codes.InvalidArgument, "default_currency must be a 3-letter ISO code")
	}
	taxRate := req.GetTaxRate()
	if taxRate < 0 || taxRate >= 1 {
		return nil, status.Error(codes.InvalidArgument, "tax_rate must be a fraction in [0, 1)")
	}

	row, err := s.companyRepo.CreateCompany(ctx, &repository.Company{
		Name:            name,
		DefaultCurrency: currency,
		TaxRate:         taxRate,
	})
	if err != nil {
		s.logger.Error("failed to create company", "name", name, "error", err)
		return nil, status.Errorf(codes.Internal, "create company: %v", err)
	}
	s.logger.Info("company created successfully", "company_id", row.ID, "name", name)

	return &rugflowpb.CreateCompanyResponse{
		Company: utils.ToPBCompany(utils.ToCompany(row)),
	}, nil
}

func (s *CompanyServer) ListCompanies(ctx context.Context, _ *rugflowpb.ListCompaniesRequest) (*rugflowpb.ListCompaniesResponse, error) {
	if err := staffOnly(ctx); err != nil {
		return nil, err
	}
	rows, err := s.companyRepo.ListCompanies(ctx)
	if err != nil {
		s.logger.Error("failed to list companies", "error", err)
		return nil, status.Errorf(codes.Internal, "list companies: %v", err)
	}

	out := make([]*rugflowpb.Company, 0, len(rows))
	for _, row := range rows {
		out = append(out, utils.ToPBCompany(utils.ToCompany(row)))
	}
	return &rugflowpb.ListCompaniesResponse{Companies: out}, nil
}

func (s *CompanyServer) UpdatePriceBook(ctx context.Context, req *rugflowpb.UpdatePriceBookRequest) (*rugflowpb.UpdatePriceBookResponse, error) {
	if err := staffOnly(ctx); err != nil {
		return nil, err
	}
	companyID, err := uuid.Parse(strings.TrimSpace(req.GetCompanyId()))
	if err != nil {
		s.logger.Error("invalid company_id format for price book update", "company_id", req.GetCompanyId(), "error", err)
		return nil, status.Error(codes.InvalidArgument, "company_id must be a UUID")
	}

	raw := strings.TrimSpace(req.GetPriceBookJson())
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "price_book_json is required")
	}
	var rates map[string]float64
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "price_book_json must map service codes to rates: %v", err)
	}
	for code, rate := range rates {
		if _, ok := constants.CanonicalizeService(code); !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown service code %q in price book", code)
		}
		if rate < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "rate for %q cannot be negative", code)
		}
	}

	row, err := s.companyRepo.UpdatePriceBook(ctx, companyID, json.RawMessage(raw))
	if err != nil {
		s.logger.Error("failed to update price book", "company_id", companyID, "error", err)
		return nil, status.Errorf(codes.Internal, "update price book: %v", err)
	}
	s.logger.Info("price book updated successfully", "company_id", companyID, "entries", len(rates))

	return &rugflowpb.UpdatePriceBookResponse{
		Company: utils.ToPBCompany(utils.ToCompany(row)),
	}, nil
}
