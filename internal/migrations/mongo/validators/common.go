package validators

import "go.mongodb.org/mongo-driver/bson"

// objectIDHex matches references stored as 24 character hex strings.
var objectIDHex = bson.M{
	"bsonType":  "string",
	"minLength": 24,
	"maxLength": 24,
}

var money = bson.M{
	"bsonType": []string{"double", "int", "long", "decimal"},
	"minimum":  0,
}
