package validators

import "go.mongodb.org/mongo-driver/bson"

var InvoiceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"invoice_number",
			"booking_id",
			"booking_number",
			"user_id",
			"items",
			"subtotal",
			"tax_rate",
			"tax",
			"total",
			"currency",
			"issued_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"invoice_number": bson.M{
				"bsonType": "string",
				"pattern":  "^INV-[0-9]{6,}$",
			},

			"booking_id": objectIDHex,
			"user_id":    objectIDHex,

			"items": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"description", "quantity", "unit_price", "amount"},
				},
			},

			"subtotal": money,
			"tax":      money,
			"total":    money,

			"tax_rate": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
				"maximum":  1,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"issued_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
