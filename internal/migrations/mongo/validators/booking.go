package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_number",
			"vehicle_id",
			"user_id",
			"pickup_date",
			"dropoff_date",
			"pickup_location",
			"dropoff_location",
			"days",
			"price_per_day",
			"total_price",
			"status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_number": bson.M{
				"bsonType": "string",
				"pattern":  "^BK-[0-9]{6,}$",
			},

			"vehicle_id": objectIDHex,
			"user_id":    objectIDHex,

			"vendor_id": bson.M{
				"bsonType": "string",
			},

			"pickup_date": bson.M{
				"bsonType": "date",
			},

			"dropoff_date": bson.M{
				"bsonType": "date",
			},

			"pickup_location": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"dropoff_location": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"days": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"price_per_day": money,
			"total_price":   money,

			"status": bson.M{
				"enum": []string{"pending", "booked", "on_trip", "completed", "cancelled", "overdue"},
			},

			"payment_status": bson.M{
				"enum": []string{"pending", "paid", "refunded"},
			},

			"payment_reference": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"cancel_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"invoice_number": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var BookingLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
				"pattern":  "^booking_lock_",
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
