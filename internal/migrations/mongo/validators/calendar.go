package validators

import "go.mongodb.org/mongo-driver/bson"

var CalendarValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"capacity_sqm",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 80,
			},

			"capacity_sqm": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"calendar_id",
			"holder",
			"start_time",
			"end_time",
			"units",
			"active",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"calendar_id": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 80,
			},

			"holder": bson.M{
				"bsonType": "object",
				"required": []string{"kind", "id"},
				"properties": bson.M{
					"kind": bson.M{
						"enum": []string{"booking", "sublease", "override"},
					},
					"id": bson.M{
						"bsonType":  "string",
						"minLength": 1,
						"maxLength": 64,
					},
				},
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

			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
