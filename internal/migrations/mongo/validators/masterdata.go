package validators

import "go.mongodb.org/mongo-driver/bson"

var LocationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"district", "name", "is_active"},
		"properties": bson.M{
			"district": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"is_active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}

var CarModelValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"brand", "model", "car_type"},
		"properties": bson.M{
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
			"car_type": bson.M{
				"enum": []string{"hatchback", "sedan", "suv", "muv", "luxury"},
			},
		},
	},
}

var CounterValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "seq"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"seq": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
		},
	},
}
