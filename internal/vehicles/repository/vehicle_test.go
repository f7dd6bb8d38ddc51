package repository

import (
	"testing"
	"time"

	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildFilter(t *testing.T) {
	validUntil := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter model.VehicleFilter
		check  func(t *testing.T, f bson.M)
	}{
		{
			name:   "always excludes deleted",
			filter: model.VehicleFilter{},
			check: func(t *testing.T, f bson.M) {
				if f["is_deleted"] != false {
					t.Errorf("is_deleted = %v, want false", f["is_deleted"])
				}
				if _, ok := f["is_admin_approved"]; ok {
					t.Error("empty approval should not filter on approval")
				}
			},
		},
		{
			name:   "approved only",
			filter: model.VehicleFilter{Approval: model.ApprovalApproved},
			check: func(t *testing.T, f bson.M) {
				if f["is_admin_approved"] != true {
					t.Errorf("is_admin_approved = %v", f["is_admin_approved"])
				}
			},
		},
		{
			name:   "pending excludes rejected",
			filter: model.VehicleFilter{Approval: model.ApprovalPending},
			check: func(t *testing.T, f bson.M) {
				if f["is_admin_approved"] != false || f["is_rejected"] != false {
					t.Errorf("got %v", f)
				}
			},
		},
		{
			name:   "exact fields and brand regex",
			filter: model.VehicleFilter{District: "Bengaluru Urban", Location: "Indiranagar", Brand: "Maruti (Suzuki)", VendorID: "v1"},
			check: func(t *testing.T, f bson.M) {
				if f["district"] != "Bengaluru Urban" || f["location"] != "Indiranagar" || f["vendor_id"] != "v1" {
					t.Errorf("got %v", f)
				}
				re, ok := f["brand"].(primitive.Regex)
				if !ok {
					t.Fatalf("brand filter type = %T", f["brand"])
				}
				if re.Pattern != `^Maruti \(Suzuki\)$` || re.Options != "i" {
					t.Errorf("brand regex = %+v", re)
				}
			},
		},
		{
			name:   "price range and seats",
			filter: model.VehicleFilter{MinSeats: 5, MinPrice: 1000, MaxPrice: 3000},
			check: func(t *testing.T, f bson.M) {
				price := f["price_per_day"].(bson.M)
				if price["$gte"] != 1000.0 || price["$lte"] != 3000.0 {
					t.Errorf("price = %v", price)
				}
				if f["seats"].(bson.M)["$gte"] != 5 {
					t.Errorf("seats = %v", f["seats"])
				}
			},
		},
		{
			name:   "only max price",
			filter: model.VehicleFilter{MaxPrice: 2000},
			check: func(t *testing.T, f bson.M) {
				price := f["price_per_day"].(bson.M)
				if _, ok := price["$gte"]; ok {
					t.Errorf("unexpected lower bound: %v", price)
				}
			},
		},
		{
			name:   "certificates valid until dropoff",
			filter: model.VehicleFilter{ValidUntil: validUntil},
			check: func(t *testing.T, f bson.M) {
				for _, field := range []string{"insurance_end", "registration_end", "pollution_end"} {
					if f[field].(bson.M)["$gte"] != validUntil {
						t.Errorf("%s = %v", field, f[field])
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, buildFilter(tt.filter))
		})
	}
}
