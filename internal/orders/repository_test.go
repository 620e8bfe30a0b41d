package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatOrderNumber(t *testing.T) {
	at := time.Date(2026, 1, 9, 23, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "ORD-20260109-000042", FormatOrderNumber(at, 42))
	assert.Equal(t, "ORD-20260109-000001", FormatOrderNumber(at, 1000001))
}
