package validators

import "go.mongodb.org/mongo-driver/bson"

var DelegateValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"property_id",
			"booking_id",
			"operator",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"operator": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 64,
			},

			"total_units": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"unit_price": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"fee_bps": bson.M{
				"bsonType": "long",
				"minimum":  0,
				"maximum":  10000,
			},

			"sold_units": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"open": bson.M{
				"bsonType": "bool",
			},

			"closed": bson.M{
				"bsonType": "bool",
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

var SubleaseValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"delegate_id",
			"seq",
			"tenant",
			"start_time",
			"end_time",
			"units",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"delegate_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
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

			"gross_rent": bson.M{
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
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
