package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/blingbridge/pkg/db/models"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns the local order snapshots pushed by the storefront.
type Service struct {
	repo     Repository
	logg     *logger.Logger
	validate *validator.Validate
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{
		repo:     params.Repo,
		logg:     params.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Ingest validates and stores the snapshot. An existing invoice link is kept.
func (s *Service) Ingest(ctx context.Context, input SnapshotInput) (*models.Order, error) {
	input.Number = strings.TrimSpace(input.Number)
	input.Status = normalizeStatus(input.Status)
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order payload").
			WithDetails(fieldErrors(err))
	}

	order := input.ToModel()
	if err := s.repo.Upsert(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order snapshot")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID)
	s.logg.Info(ctx, "order snapshot stored")
	return s.repo.FindByID(ctx, order.ID)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// Invoice returns the invoice link of the order together with its notes.
func (s *Service) Invoice(ctx context.Context, id int64) (InvoiceView, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return InvoiceView{}, err
	}
	notes, err := s.repo.ListNotes(ctx, id)
	if err != nil {
		return InvoiceView{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order notes")
	}
	return NewInvoiceView(order, notes), nil
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	return strings.TrimPrefix(status, "wc-")
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}

// NormalizeStatus strips the storefront "wc-" prefix and lowercases.
func NormalizeStatus(status string) string {
	return normalizeStatus(status)
}
