package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/models"
)

func TestMergeFillsMissingPhoneAndKeepsRemoteAddress(t *testing.T) {
	remoteAddress := bling.Address{
		Street: "Rua A", Number: "1", Neighborhood: "Centro",
		PostalCode: "01001000", City: "Sao Paulo", State: "SP",
	}
	remote := bling.Contact{ID: 5, Name: "Maria", Document: "12345678909", Phone: "", Address: bling.ContactAddress{General: remoteAddress}}
	local := bling.Contact{
		Name: "Maria", Document: "12345678909", Phone: "11999999999",
		Address: bling.ContactAddress{General: bling.Address{
			Street: "Rua B", Number: "2", Neighborhood: "Bairro", PostalCode: "02002000", City: "Campinas", State: "SP",
		}},
	}

	merged, changed := Merge(remote, local, false)
	assert.True(t, changed)
	assert.Equal(t, "11999999999", merged.Phone)
	assert.Equal(t, remoteAddress, merged.Address.General)
	assert.Equal(t, int64(5), merged.ID)
}

func TestMergeNameIsFillOnlyByDefault(t *testing.T) {
	remote := bling.Contact{Name: "Old Name", Document: "1"}
	local := bling.Contact{Name: "New Name", Document: "1"}

	merged, changed := Merge(remote, local, false)
	assert.False(t, changed)
	assert.Equal(t, "Old Name", merged.Name)

	merged, changed = Merge(remote, local, true)
	assert.True(t, changed)
	assert.Equal(t, "New Name", merged.Name)

	merged, changed = Merge(remote, bling.Contact{Document: "1"}, true)
	assert.False(t, changed)
	assert.Equal(t, "Old Name", merged.Name)
}

func TestFromOrderPrefersCompanyForCNPJ(t *testing.T) {
	contact := FromOrder(models.Order{
		BillingFirstName:  "Joao",
		BillingLastName:   "Souza",
		BillingCompany:    "Souza Comercio LTDA",
		BillingCNPJ:       "12.345.678/0001-95",
		BillingPersonType: "2",
	})
	assert.Equal(t, "J", contact.PersonType)
	assert.Equal(t, "12345678000195", contact.Document)
	assert.Equal(t, "Souza Comercio LTDA", contact.Name)
}

func TestValidateFiscalListsMissingFields(t *testing.T) {
	err := ValidateFiscal(bling.Contact{Name: "Maria", Document: "1"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	assert.Contains(t, err.Error(), "missing fiscal data")
}
