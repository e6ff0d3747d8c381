package products

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

// Client is the subset of the Bling gateway used to sync products.
type Client interface {
	FindProductBySKU(ctx context.Context, sku string) (*bling.Product, error)
	CreateProduct(ctx context.Context, product bling.Product) (int64, error)
}

// Failure is a SKU that could not be synced.
type Failure struct {
	SKU string
	Err error
}

// Report summarizes one sync pass.
type Report struct {
	Existing []string
	Created  []string
	Failures []Failure
}

type ServiceParams struct {
	Client Client
	Logger *logger.Logger
}

// Service makes sure every ordered SKU is registered in Bling.
type Service struct {
	client Client
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Client == nil {
		return nil, errors.New("bling client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{client: params.Client, logg: params.Logger}, nil
}

// Sync looks up each distinct SKU and creates the missing ones. Lines without
// a SKU are skipped here; the invoice builder rejects them.
func (s *Service) Sync(ctx context.Context, items []models.OrderItem) Report {
	var report Report
	seen := map[string]struct{}{}
	for _, item := range items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			continue
		}
		key := strings.ToUpper(sku)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		existing, err := s.client.FindProductBySKU(ctx, sku)
		if err != nil {
			report.Failures = append(report.Failures, Failure{SKU: sku, Err: err})
			continue
		}
		if existing != nil {
			report.Existing = append(report.Existing, sku)
			continue
		}

		if _, err := s.client.CreateProduct(ctx, productFromItem(item, sku)); err != nil {
			report.Failures = append(report.Failures, Failure{SKU: sku, Err: err})
			continue
		}
		report.Created = append(report.Created, sku)
	}

	if len(report.Failures) > 0 {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"failed":  len(report.Failures),
			"created": len(report.Created),
		})
		s.logg.Warn(ctx, "product sync incomplete")
	}
	return report
}

func productFromItem(item models.OrderItem, sku string) bling.Product {
	return bling.Product{
		Name:   strings.TrimSpace(item.Name),
		Code:   sku,
		Price:  bling.Amount(item.UnitPrice),
		Type:   "P",
		Status: "A",
		Format: "S",
		Unit:   "UN",
	}
}
