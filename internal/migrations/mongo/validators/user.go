package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"username",
			"email",
			"password_hash",
			"role",
			"is_verified",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"username": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 50,
			},

			"email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
				"pattern":   "^[^@\\s]+@[^@\\s]+$",
			},

			"phone": bson.M{
				"bsonType": "string",
				"pattern":  "^\\+[1-9][0-9]{6,14}$",
			},

			"password_hash": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"role": bson.M{
				"enum": []string{"user", "vendor", "admin"},
			},

			"is_verified": bson.M{
				"bsonType": "bool",
			},

			"address": bson.M{
				"bsonType":  "string",
				"maxLength": 300,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var OTPValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "email", "purpose", "code_hash", "attempts", "expires_at"},
		"properties": bson.M{
			"purpose": bson.M{
				"enum": []string{"verify", "reset"},
			},
			"code_hash": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"attempts": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
