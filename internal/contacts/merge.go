package contacts

import (
	"strings"

	"github.com/angelmondragon/blingbridge/pkg/bling"
)

// Merge fills empty fields of the remote contact with local values. Populated
// remote fields are never overwritten, except the name when overwriteName is set.
// It reports whether anything changed.
func Merge(remote, local bling.Contact, overwriteName bool) (bling.Contact, bool) {
	merged := remote
	changed := false

	fill := func(dst *string, value string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(value) != "" {
			*dst = value
			changed = true
		}
	}

	if overwriteName && strings.TrimSpace(local.Name) != "" && strings.TrimSpace(remote.Name) != strings.TrimSpace(local.Name) {
		merged.Name = local.Name
		changed = true
	} else {
		fill(&merged.Name, local.Name)
	}

	fill(&merged.Document, local.Document)
	fill(&merged.PersonType, local.PersonType)
	fill(&merged.Phone, local.Phone)
	fill(&merged.Cellphone, local.Cellphone)
	fill(&merged.Email, local.Email)

	addr := &merged.Address.General
	src := local.Address.General
	fill(&addr.Street, src.Street)
	fill(&addr.Number, src.Number)
	fill(&addr.Complement, src.Complement)
	fill(&addr.Neighborhood, src.Neighborhood)
	fill(&addr.PostalCode, src.PostalCode)
	fill(&addr.City, src.City)
	fill(&addr.State, src.State)
	fill(&addr.Country, src.Country)

	return merged, changed
}
