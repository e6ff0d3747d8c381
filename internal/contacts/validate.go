package contacts

import (
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

var validate = validator.New()

type fiscalContact struct {
	Name         string `validate:"required"`
	Document     string `validate:"required"`
	Street       string `validate:"required"`
	Number       string `validate:"required"`
	Neighborhood string `validate:"required"`
	PostalCode   string `validate:"required"`
	City         string `validate:"required"`
	State        string `validate:"required,len=2"`
}

var fieldNames = map[string]string{
	"Name":         "name",
	"Document":     "tax_id",
	"Street":       "street",
	"Number":       "number",
	"Neighborhood": "neighborhood",
	"PostalCode":   "postal_code",
	"City":         "city",
	"State":        "state",
}

// ValidateFiscal checks the contact carries everything an NF-e recipient needs.
func ValidateFiscal(contact bling.Contact) error {
	addr := contact.Address.General
	err := validate.Struct(fiscalContact{
		Name:         contact.Name,
		Document:     contact.Document,
		Street:       addr.Street,
		Number:       addr.Number,
		Neighborhood: addr.Neighborhood,
		PostalCode:   addr.PostalCode,
		City:         addr.City,
		State:        addr.State,
	})
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "contact validation failed")
	}
	missing := make([]string, 0, len(errs))
	for _, fe := range errs {
		missing = append(missing, fieldNames[fe.StructField()])
	}
	sort.Strings(missing)
	return pkgerrors.New(pkgerrors.CodeValidation, "contact is missing fiscal data").
		WithDetails(map[string]any{"missing_fields": missing})
}
