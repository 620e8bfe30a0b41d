package httpx

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const schemaCreateOrder = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["storeSlug", "customer", "items", "paymentMethod"],
  "properties": {
    "storeSlug": { "type": "string", "minLength": 1 },
    "customer": {
      "type": "object",
      "required": ["name", "phone"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "phone": { "type": "string", "minLength": 1 },
        "email": { "type": "string" },
        "address": { "type": "string" }
      }
    },
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["menuItemId", "quantity"],
        "properties": {
          "menuItemId": { "type": "string", "minLength": 1 },
          "quantity": { "type": "integer", "minimum": 1 },
          "notes": { "type": "string" }
        }
      }
    },
    "paymentMethod": { "enum": ["CASH_ON_DELIVERY", "CARD", "UPI", "WALLET"] },
    "couponCode": { "type": "string" },
    "notes": { "type": "string" }
  }
}`

var createOrderLoader = gojsonschema.NewStringLoader(schemaCreateOrder)

// validateBody returns "" when body satisfies the schema, otherwise a
// readable list of violations.
func validateBody(schema gojsonschema.JSONLoader, body []byte) string {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return "invalid json"
	}
	if res.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}
