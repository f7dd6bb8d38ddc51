package validators

import "go.mongodb.org/mongo-driver/bson"

var VehicleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"registration_number",
			"brand",
			"model",
			"name",
			"year",
			"car_type",
			"fuel_type",
			"transmission",
			"seats",
			"price_per_day",
			"district",
			"location",
			"insurance_end",
			"registration_end",
			"pollution_end",
			"is_admin_approved",
			"is_deleted",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"registration_number": bson.M{
				"bsonType":  "string",
				"minLength": 6,
				"maxLength": 12,
			},

			"brand": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 50,
			},

			"model": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"year": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1990,
				"maximum":  2100,
			},

			"car_type": bson.M{
				"enum": []string{"hatchback", "sedan", "suv", "muv", "luxury"},
			},

			"fuel_type": bson.M{
				"enum": []string{"petrol", "diesel", "electric", "hybrid", "cng"},
			},

			"transmission": bson.M{
				"enum": []string{"manual", "automatic"},
			},

			"seats": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  2,
				"maximum":  12,
			},

			"price_per_day": money,

			"district": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"location": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"images": bson.M{
				"bsonType": []string{"array", "null"},
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"insurance_end":    bson.M{"bsonType": "date"},
			"registration_end": bson.M{"bsonType": "date"},
			"pollution_end":    bson.M{"bsonType": "date"},

			"is_admin_approved": bson.M{"bsonType": "bool"},
			"is_rejected":       bson.M{"bsonType": "bool"},
			"is_deleted":        bson.M{"bsonType": "bool"},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
