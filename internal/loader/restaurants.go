package loader

import (
	"sort"

	"github.com/sells-group/inspection-risk/internal/model"
)

// RestaurantStats aggregates the orders placed with one restaurant name.
type RestaurantStats struct {
	RestaurantName string   `json:"restaurant_name"`
	NormalizedName string   `json:"normalized_name"`
	Cuisine        string   `json:"cuisine_type"`
	OrderCount     int      `json:"order_count"`
	TotalRevenue   float64  `json:"total_revenue"`
	AvgRating      *float64 `json:"avg_rating"`
}

// Restaurants groups orders by raw restaurant name, highest revenue first.
// Cuisine and normalized name come from the first order seen; the average
// rating ignores unrated orders and is nil when none were rated.
func Restaurants(orders []model.Order) []RestaurantStats {
	type acc struct {
		RestaurantStats
		ratingSum float64
		rated     int
	}
	byName := make(map[string]*acc)
	var names []string
	for _, o := range orders {
		a, ok := byName[o.RestaurantName]
		if !ok {
			a = &acc{RestaurantStats: RestaurantStats{
				RestaurantName: o.RestaurantName,
				NormalizedName: o.RestaurantNameNormalized,
				Cuisine:        o.Cuisine,
			}}
			byName[o.RestaurantName] = a
			names = append(names, o.RestaurantName)
		}
		a.OrderCount++
		a.TotalRevenue += o.Cost
		if o.Rating != nil {
			a.ratingSum += *o.Rating
			a.rated++
		}
	}

	sort.Strings(names)
	out := make([]RestaurantStats, 0, len(names))
	for _, n := range names {
		a := byName[n]
		if a.rated > 0 {
			avg := a.ratingSum / float64(a.rated)
			a.AvgRating = &avg
		}
		out = append(out, a.RestaurantStats)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalRevenue > out[j].TotalRevenue })
	return out
}

// ForRestaurant returns the orders placed with exactly the given name, in
// input order.
func ForRestaurant(orders []model.Order, name string) []model.Order {
	var out []model.Order
	for _, o := range orders {
		if o.RestaurantName == name {
			out = append(out, o)
		}
	}
	return out
}
