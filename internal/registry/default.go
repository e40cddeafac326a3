package registry

// DefaultSchema returns the built-in deal-resume schema used when no schema
// fixture is configured. Sections and rules mirror the production field list.
func DefaultSchema() *Schema {
	return NewSchema([]SchemaField{
		// Loan section.
		{ID: "loanAmount", Section: "loan", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.03, LogicChecks: []string{"purchase_gte_loan"}}},
		{ID: "loanTerm", Section: "loan", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.01}},
		{ID: "interestRate", Section: "loan", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.05}},
		{ID: "loanType", Section: "loan", Type: TypeText,
			Rule: Rule{Strategy: StrategyExact}},
		{ID: "lenderName", Section: "loan", Type: TypeText,
			Rule: Rule{Strategy: StrategySemantic, Threshold: 0.8}},

		// Property section.
		{ID: "propertyName", Section: "property", Type: TypeText,
			Rule: Rule{Strategy: StrategySemantic, Threshold: 0.75}},
		{ID: "propertyAddress", Section: "property", Type: TypeText,
			Rule: Rule{Strategy: StrategySemantic, Threshold: 0.7}},
		{ID: "propertyType", Section: "property", Type: TypeText,
			Rule: Rule{Strategy: StrategyExact}},
		{ID: "numberOfStories", Section: "property", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyExact, LogicChecks: []string{"stories_range"}}},
		{ID: "numberOfUnits", Section: "property", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.02}},
		{ID: "yearBuilt", Section: "property", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyExact}},
		{ID: "squareFootage", Section: "property", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.05}},
		{ID: "tenants", Section: "property", Type: TypeList,
			Rule: Rule{Strategy: StrategySetSimilarity, Threshold: 0.5}},

		// Financials section.
		{ID: "noi", Section: "financials", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.03, LogicChecks: []string{"noi_positive"}}},
		{ID: "purchasePrice", Section: "financials", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.03, LogicChecks: []string{"purchase_gte_loan"}}},
		{ID: "grossIncome", Section: "financials", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.05}},
		{ID: "operatingExpenses", Section: "financials", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.05}},
		{ID: "occupancyRate", Section: "financials", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.02}},

		// Derived metrics. Tight 1% tolerance: they are computed, anything
		// beyond rounding noise means an input diverged upstream.
		{ID: "debtYield", Section: "metrics", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.01}},
		{ID: "ltv", Section: "metrics", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.01}},
		{ID: "capRate", Section: "metrics", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.01}},
		{ID: "pricePerUnit", Section: "metrics", Type: TypeNumber,
			Rule: Rule{Strategy: StrategyPercentDiff, Threshold: 0.01}},

		// Sponsor section.
		{ID: "sponsorName", Section: "sponsor", Type: TypeText,
			Rule: Rule{Strategy: StrategySemantic, Threshold: 0.8}},
		{ID: "sponsorEntity", Section: "sponsor", Type: TypeText,
			Rule: Rule{Strategy: StrategySemantic, Threshold: 0.8}},
		{ID: "guarantors", Section: "sponsor", Type: TypeList,
			Rule: Rule{Strategy: StrategySetSimilarity, Threshold: 0.6}},
	})
}
