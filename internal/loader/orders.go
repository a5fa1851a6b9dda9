// Package loader reads the food-order export into model.Order values.
package loader

import (
	"context"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/fetcher"
	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/resolve"
)

// Column names of the order export.
const (
	ColOrderID      = "order_id"
	ColCustomerID   = "customer_id"
	ColRestaurant   = "restaurant_name"
	ColCuisine      = "cuisine_type"
	ColCost         = "cost_of_the_order"
	ColDayOfWeek    = "day_of_the_week"
	ColRating       = "rating"
	ColPrepTime     = "food_preparation_time"
	ColDeliveryTime = "delivery_time"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{
	ColOrderID, ColCustomerID, ColRestaurant, ColCuisine, ColCost,
	ColDayOfWeek, ColRating, ColPrepTime, ColDeliveryTime,
}

// ratingNotGiven marks an order the customer did not rate.
const ratingNotGiven = "Not given"

// Result is the outcome of loading an order export.
type Result struct {
	Orders []model.Order
	// Dropped counts rows discarded as malformed or for an unparseable cost
	// or identifier.
	Dropped int
}

// LoadOrders reads the CSV export at path.
func LoadOrders(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open orders %s", path)
	}
	defer f.Close() //nolint:errcheck

	log := zap.L().With(zap.String("component", "loader"), zap.String("path", path))

	// malformed is written by the reader goroutine and read once both
	// channels have closed.
	var malformed int
	recCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		LazyQuotes: true,
		Required:   RequiredColumns,
		OnParseError: func(line int, err error) {
			malformed++
			log.Debug("dropping malformed order row", zap.Int("line", line), zap.Error(err))
		},
	})

	res := &Result{}
	for rec := range recCh {
		o, ok := parseOrder(rec)
		if !ok {
			res.Dropped++
			log.Debug("dropping order row", zap.Int("line", rec.Line))
			continue
		}
		res.Orders = append(res.Orders, o)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "loader: read orders %s", path)
	}
	res.Dropped += malformed

	if res.Dropped > 0 {
		log.Warn("dropped invalid order rows", zap.Int("dropped", res.Dropped))
	}
	log.Info("loaded orders",
		zap.Int("orders", len(res.Orders)),
		zap.Int("restaurants", countRestaurants(res.Orders)),
	)
	return res, nil
}

func parseOrder(rec fetcher.Record) (model.Order, bool) {
	cost, ok := parseFloat(rec.Get(ColCost))
	if !ok {
		return model.Order{}, false
	}
	orderID, err := strconv.Atoi(strings.TrimSpace(rec.Get(ColOrderID)))
	if err != nil {
		return model.Order{}, false
	}
	// A bad customer id is not fatal to the order.
	customerID, _ := strconv.Atoi(strings.TrimSpace(rec.Get(ColCustomerID)))

	name := resolve.TrimName(rec.Get(ColRestaurant))
	o := model.Order{
		OrderID:                  orderID,
		CustomerID:               customerID,
		RestaurantName:           name,
		RestaurantNameNormalized: resolve.Normalize(name),
		Cuisine:                  strings.TrimSpace(rec.Get(ColCuisine)),
		Cost:                     cost,
		DayOfWeek:                strings.TrimSpace(rec.Get(ColDayOfWeek)),
		PrepTime:                 optionalFloat(rec.Get(ColPrepTime)),
		DeliveryTime:             optionalFloat(rec.Get(ColDeliveryTime)),
	}
	if r := strings.TrimSpace(rec.Get(ColRating)); r != ratingNotGiven {
		o.Rating = optionalFloat(r)
	}
	return o, true
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func optionalFloat(s string) *float64 {
	v, ok := parseFloat(s)
	if !ok {
		return nil
	}
	return &v
}

func countRestaurants(orders []model.Order) int {
	seen := make(map[string]struct{})
	for _, o := range orders {
		seen[o.RestaurantName] = struct{}{}
	}
	return len(seen)
}
