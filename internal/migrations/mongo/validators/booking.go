package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"property_id",
			"seq",
			"tenant",
			"start_time",
			"end_time",
			"units",
			"period_days",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"seq": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"tenant": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 64,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"units": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"period_days": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  365,
			},

			"gross_rent": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"deposit": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"paid_rent": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"active",
					"completed",
					"cancelled",
					"defaulted",
				},
			},

			"tokenised": bson.M{
				"bsonType": "bool",
			},

			"sold_units": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"acc_rent_per_unit": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
