package api

import "github.com/gustavoveigasaoleandro/service-order-app/internal/common/validation"

// Request-shape schemas checked before the workflow is invoked.

var createOrderSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["serviceOrder"],
	"additionalProperties": false,
	"properties": {
		"serviceOrder": {
			"type": "object",
			"required": ["initial_date", "delivery_declaration", "client_id", "problem"],
			"additionalProperties": false,
			"properties": {
				"initial_date":         {"type": "string", "format": "date-time"},
				"delivery_declaration": {"type": "string", "minLength": 1},
				"client_id":            {"type": "integer"},
				"problem":              {"type": "string", "minLength": 1}
			}
		}
	}
}`)

var updateOrderSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["serviceOrder"],
	"additionalProperties": false,
	"properties": {
		"serviceOrder": {
			"type": "object",
			"required": ["id", "status"],
			"additionalProperties": false,
			"properties": {
				"id":                 {"type": "integer"},
				"status":             {"type": "string", "enum": ["inProgress", "completed"]},
				"final_date":         {"type": "string", "format": "date-time"},
				"return_declaration": {"type": "string", "minLength": 1},
				"hours":              {"type": "integer", "minimum": 0},
				"items": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["item_id", "amount"],
						"additionalProperties": false,
						"properties": {
							"item_id": {"type": "integer"},
							"amount":  {"type": "integer", "minimum": 1}
						}
					}
				}
			}
		}
	}
}`)
