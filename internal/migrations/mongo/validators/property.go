package validators

import "go.mongodb.org/mongo-driver/bson"

var PropertyValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner",
			"capacity_sqm",
			"settlement_token",
			"daily_rate",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"owner": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 64,
			},

			"capacity_sqm": bson.M{
				"bsonType": "long",
				"minimum":  1,
				"maximum":  100000,
			},

			"settlement_token": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 64,
			},

			"daily_rate": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"deposit_amount": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"metadata_uri": bson.M{
				"bsonType":  "string",
				"maxLength": 512,
			},

			"next_booking_seq": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"active": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var PositionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"scope",
			"holder",
			"units",
			"debt",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"scope": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 96,
			},

			"holder": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 64,
			},

			"units": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"debt": bson.M{
				"bsonType": "long",
			},
		},
	},
}
