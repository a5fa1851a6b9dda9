package model

// Order is a single delivery order from the merchant's order history.
type Order struct {
	OrderID                  int      `json:"order_id"`
	CustomerID               int      `json:"customer_id"`
	RestaurantName           string   `json:"restaurant_name"`
	RestaurantNameNormalized string   `json:"restaurant_name_normalized"`
	Cuisine                  string   `json:"cuisine_type"`
	Cost                     float64  `json:"cost_of_the_order"`
	DayOfWeek                string   `json:"day_of_the_week"`
	Rating                   *float64 `json:"rating,omitempty"` // nil when "Not given"
	PrepTime                 *float64 `json:"food_preparation_time,omitempty"`
	DeliveryTime             *float64 `json:"delivery_time,omitempty"`
}

// EnrichedOrder is an Order joined with the latest inspection row of the
// restaurant it resolved to. Identifier is empty when the restaurant name
// could not be resolved; Inspection is nil when no inspection row exists.
type EnrichedOrder struct {
	Order
	Identifier string      `json:"camis,omitempty"`
	Inspection *Inspection `json:"inspection,omitempty"`
}

// Resolved reports whether the order's restaurant resolved to a registry identifier.
func (e EnrichedOrder) Resolved() bool {
	return e.Identifier != ""
}

// Grade returns the joined inspection grade, or "" if there is none.
func (e EnrichedOrder) Grade() string {
	if e.Inspection == nil {
		return ""
	}
	return e.Inspection.Grade
}
