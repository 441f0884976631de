package loop

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// EntityFields are the payload fields that name an entity.
var EntityFields = []string{
	"entity_id", "entity_name", "applicant", "contractor_id", "contractor_name",
	"partner_id", "partner_name", "source_name", "recipient_name",
	"fund_id", "fund_name", "licensor_name", "licensee_name",
}

// NormalizeEntity folds an entity name to NFC lower case so the same
// entity matches across domains regardless of source casing.
func NormalizeEntity(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// ExtractEntities returns the normalised identifiers named by r, in
// EntityFields order. Empty and false values are skipped.
func ExtractEntities(r *receipts.Receipt) []string {
	var out []string
	for _, f := range EntityFields {
		v, ok := r.Get(f)
		if !ok || !receipts.IsTruthy(v) {
			continue
		}
		out = append(out, NormalizeEntity(receipts.Stringify(v)))
	}
	return out
}

func mentions(r *receipts.Receipt, entity string) bool {
	for _, e := range ExtractEntities(r) {
		if e == entity {
			return true
		}
	}
	return false
}
