package divergence

import (
	"fmt"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// LogicCheck is a named business-rule predicate evaluated against the whole
// record. It returns a warning message, or "" when the rule holds or its
// inputs are missing.
type LogicCheck func(content map[string]model.FieldRecord) string

// logicChecks is the built-in predicate registry, keyed by the names used in
// schema rules. Unknown names are skipped at check time.
var logicChecks = map[string]LogicCheck{
	"purchase_gte_loan": checkPurchaseGTELoan,
	"noi_positive":      checkNOIPositive,
	"stories_range":     checkStoriesRange,
}

// LookupLogicCheck returns the predicate registered under name, or nil.
func LookupLogicCheck(name string) LogicCheck {
	return logicChecks[name]
}

func fieldFloat(content map[string]model.FieldRecord, fieldID string) (float64, bool) {
	fr, ok := content[fieldID]
	if !ok || fr.IsEmpty() {
		return 0, false
	}
	return toFloat(fr.Value)
}

func checkPurchaseGTELoan(content map[string]model.FieldRecord) string {
	loan, ok := fieldFloat(content, "loanAmount")
	if !ok {
		return ""
	}
	purchase, ok := fieldFloat(content, "purchasePrice")
	if !ok {
		return ""
	}
	if purchase < loan {
		return fmt.Sprintf("purchase price %.0f is below loan amount %.0f", purchase, loan)
	}
	return ""
}

func checkNOIPositive(content map[string]model.FieldRecord) string {
	noi, ok := fieldFloat(content, "noi")
	if !ok {
		return ""
	}
	if noi <= 0 {
		return fmt.Sprintf("NOI %.0f is not positive", noi)
	}
	return ""
}

func checkStoriesRange(content map[string]model.FieldRecord) string {
	stories, ok := fieldFloat(content, "numberOfStories")
	if !ok {
		return ""
	}
	if stories < 1 || stories > 200 {
		return fmt.Sprintf("number of stories %.0f outside plausible range", stories)
	}
	return ""
}
