package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func find(t *testing.T, name string) Collection {
	t.Helper()
	for _, c := range Collections() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("collection %s not declared", name)
	return Collection{}
}

func keyNames(m mongo.IndexModel) []string {
	var out []string
	for _, e := range m.Keys.(bson.D) {
		out = append(out, e.Key)
	}
	return out
}

func TestCollections_HaveValidators(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Collections() {
		if seen[c.Name] {
			t.Errorf("duplicate collection %s", c.Name)
		}
		seen[c.Name] = true
		if _, ok := c.Validator["$jsonSchema"]; !ok {
			t.Errorf("%s has no $jsonSchema validator", c.Name)
		}
	}
}

func TestTTLIndexes(t *testing.T) {
	for _, name := range []string{"otps", "booking_locks"} {
		t.Run(name, func(t *testing.T) {
			c := find(t, name)
			if len(c.Indexes) == 0 {
				t.Fatal("no indexes")
			}
			idx := c.Indexes[0]
			if keys := keyNames(idx); len(keys) != 1 || keys[0] != "expires_at" {
				t.Errorf("keys = %v", keys)
			}
			if idx.Options == nil || idx.Options.ExpireAfterSeconds == nil || *idx.Options.ExpireAfterSeconds != 0 {
				t.Errorf("expected expireAfterSeconds=0")
			}
		})
	}
}

func TestUniqueIndexes(t *testing.T) {
	tests := []struct {
		collection string
		keys       []string
	}{
		{"users", []string{"email"}},
		{"vehicles", []string{"registration_number"}},
		{"invoices", []string{"booking_id"}},
		{"locations", []string{"district", "name"}},
		{"car_models", []string{"brand", "model"}},
		{"bookings", []string{"booking_number"}},
	}

	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			found := false
			for _, idx := range find(t, tt.collection).Indexes {
				keys := keyNames(idx)
				if len(keys) != len(tt.keys) {
					continue
				}
				match := true
				for i := range keys {
					if keys[i] != tt.keys[i] {
						match = false
					}
				}
				if match && idx.Options != nil && idx.Options.Unique != nil && *idx.Options.Unique {
					found = true
				}
			}
			if !found {
				t.Errorf("unique index on %v missing", tt.keys)
			}
		})
	}
}
