package analytics

// HealthReport describes the data behind an Analyzer.
type HealthReport struct {
	Status            string `json:"status"`
	OrdersLoaded      int    `json:"orders_loaded"`
	InspectionsLoaded int    `json:"inspections_loaded"`
	RestaurantsMapped int    `json:"restaurants_mapped"`
}

// GradeRevenue is the revenue attributed to one inspection grade.
type GradeRevenue struct {
	Grade      string  `json:"grade"`
	Revenue    float64 `json:"revenue"`
	OrderCount int     `json:"order_count"`
	Percentage float64 `json:"percentage"`
}

// GradeReport splits order revenue by the latest inspection grade.
type GradeReport struct {
	TotalRevenue        float64        `json:"total_revenue"`
	Grades              []GradeRevenue `json:"grades"`
	UnmatchedRevenue    float64        `json:"unmatched_revenue"`
	UnmatchedOrderCount int            `json:"unmatched_order_count"`
}

// RodentOrder is an order placed with a restaurant that has rodent violations.
type RodentOrder struct {
	OrderID              int     `json:"order_id"`
	RestaurantName       string  `json:"restaurant_name"`
	Cost                 float64 `json:"cost"`
	ViolationDescription string  `json:"violation_description"`
	InspectionDate       string  `json:"inspection_date"`
	Identifier           string  `json:"camis"`
}

// RodentReport totals revenue from restaurants with rodent violations.
type RodentReport struct {
	TotalRodentRevenue float64       `json:"total_rodent_revenue"`
	OrderCount         int           `json:"order_count"`
	UniqueRestaurants  int           `json:"unique_restaurants"`
	Orders             []RodentOrder `json:"orders"`
}

// RiskReport is the revenue-at-risk calculation. Category totals overlap;
// TotalRevenueAtRisk and OrderCount count each order once.
type RiskReport struct {
	TotalRevenueAtRisk float64            `json:"total_revenue_at_risk"`
	OrderCount         int                `json:"order_count"`
	Breakdown          map[string]float64 `json:"breakdown"`
	RiskCategories     map[string]int     `json:"risk_categories"`
}

// BoroughRevenue is the revenue attributed to one borough.
type BoroughRevenue struct {
	Borough              string  `json:"borough"`
	Revenue              float64 `json:"revenue"`
	OrderCount           int     `json:"order_count"`
	Percentage           float64 `json:"percentage"`
	TopViolationCategory *string `json:"top_violation_category"`
}

// BoroughReport splits revenue by borough and by violation category.
type BoroughReport struct {
	TotalRevenue        float64            `json:"total_revenue"`
	Boroughs            []BoroughRevenue   `json:"boroughs"`
	ViolationCategories map[string]float64 `json:"violation_categories"`
}

// WatchlistRestaurant is one ranked restaurant carrying risk flags.
type WatchlistRestaurant struct {
	Rank               int      `json:"rank"`
	RestaurantName     string   `json:"restaurant_name"`
	Identifier         string   `json:"camis"`
	Revenue            float64  `json:"revenue"`
	OrderCount         int      `json:"order_count"`
	LatestGrade        *string  `json:"latest_grade"`
	CriticalViolations int      `json:"critical_violations"`
	RodentViolations   int      `json:"rodent_violations"`
	LastInspectionDate *string  `json:"last_inspection_date"`
	RiskFlags          []string `json:"risk_flags"`
}

// WatchlistReport is the top page of flagged restaurants by revenue.
type WatchlistReport struct {
	Restaurants           []WatchlistRestaurant `json:"restaurants"`
	TotalWatchlistRevenue float64               `json:"total_watchlist_revenue"`
}

// SummaryReport combines every metric.
type SummaryReport struct {
	TotalOrders    int     `json:"total_orders"`
	TotalRevenue   float64 `json:"total_revenue"`
	MatchedOrders  int     `json:"matched_orders"`
	MatchedRevenue float64 `json:"matched_revenue"`

	RodentRevenue         float64 `json:"rodent_revenue"`
	RodentOrderCount      int     `json:"rodent_order_count"`
	RodentRestaurantCount int     `json:"rodent_restaurant_count"`

	RevenueAtRisk  float64 `json:"revenue_at_risk"`
	RiskOrderCount int     `json:"risk_order_count"`

	GradeBreakdown   map[string]float64 `json:"grade_breakdown"`
	BoroughBreakdown map[string]float64 `json:"borough_breakdown"`

	TopWatchlist []WatchlistRestaurant `json:"top_watchlist"`
}
