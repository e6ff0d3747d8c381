package contacts

import (
	"strings"
	"unicode"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
)

const (
	personTypeIndividual = "F"
	personTypeCompany    = "J"
)

// FromOrder derives the local view of the customer from the order's billing data.
func FromOrder(order models.Order) bling.Contact {
	cnpj := digitsOnly(order.BillingCNPJ)
	cpf := digitsOnly(order.BillingCPF)

	personType := personTypeIndividual
	document := cpf
	if cnpj != "" && (cpf == "" || isCompanyPersonType(order.BillingPersonType)) {
		personType = personTypeCompany
		document = cnpj
	}

	name := strings.TrimSpace(strings.TrimSpace(order.BillingFirstName) + " " + strings.TrimSpace(order.BillingLastName))
	if personType == personTypeCompany {
		if company := strings.TrimSpace(order.BillingCompany); company != "" {
			name = company
		}
	}

	return bling.Contact{
		Name:       name,
		Document:   document,
		PersonType: personType,
		Phone:      digitsOnly(order.BillingPhone),
		Cellphone:  digitsOnly(order.BillingCellphone),
		Email:      strings.TrimSpace(order.BillingEmail),
		Status:     "A",
		Address: bling.ContactAddress{General: bling.Address{
			Street:       strings.TrimSpace(order.BillingAddress1),
			Number:       strings.TrimSpace(order.BillingNumber),
			Complement:   strings.TrimSpace(order.BillingAddress2),
			Neighborhood: strings.TrimSpace(order.BillingNeighborhood),
			PostalCode:   digitsOnly(order.BillingPostcode),
			City:         strings.TrimSpace(order.BillingCity),
			State:        strings.ToUpper(strings.TrimSpace(order.BillingState)),
			Country:      strings.TrimSpace(order.BillingCountry),
		}},
	}
}

func isCompanyPersonType(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "2", "j", "pj", "company", "juridica":
		return true
	}
	return false
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
