package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCreateOrderBody(t *testing.T) {
	valid := `{"storeSlug":"acme","customer":{"name":"Asha","phone":"1"},
		"items":[{"menuItemId":"m1","quantity":2}],"paymentMethod":"UPI"}`
	assert.Empty(t, validateBody(createOrderLoader, []byte(valid)))

	tests := map[string]string{
		"missing items":  `{"storeSlug":"acme","customer":{"name":"A","phone":"1"},"paymentMethod":"UPI"}`,
		"zero quantity":  `{"storeSlug":"acme","customer":{"name":"A","phone":"1"},"items":[{"menuItemId":"m1","quantity":0}],"paymentMethod":"UPI"}`,
		"unknown method": `{"storeSlug":"acme","customer":{"name":"A","phone":"1"},"items":[{"menuItemId":"m1","quantity":1}],"paymentMethod":"IOU"}`,
		"fractional qty": `{"storeSlug":"acme","customer":{"name":"A","phone":"1"},"items":[{"menuItemId":"m1","quantity":1.5}],"paymentMethod":"UPI"}`,
		"not an object":  `[]`,
		"malformed":      `{`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotEmpty(t, validateBody(createOrderLoader, []byte(body)))
		})
	}
}
