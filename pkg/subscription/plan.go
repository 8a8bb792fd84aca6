package subscription

// Plan is a purchasable subscription tier.
type Plan struct {
	ID        string
	Days      int
	DataLimit int64
	// Price in whole currency units; settlement is out of scope here.
	Price int64
}

// DefaultPlans returns the built-in plan catalog, keyed by plan ID.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		"1":  {ID: "1", Days: 30, DataLimit: 107_374_182_400, Price: 300},    // 100 GB
		"3":  {ID: "3", Days: 90, DataLimit: 322_122_547_200, Price: 750},    // 300 GB
		"6":  {ID: "6", Days: 180, DataLimit: 644_245_094_400, Price: 1000},  // 600 GB
		"12": {ID: "12", Days: 365, DataLimit: 1_288_490_188_800, Price: 2000}, // 1.2 TB
	}
}

// PlanByID looks up a plan in the catalog.
func PlanByID(catalog map[string]Plan, id string) (Plan, error) {
	plan, ok := catalog[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}
