package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		`SELECT * FROM "fulfillment_records" WHERE order_id = $1`:                    "SELECT",
		`INSERT INTO "fulfillment_records" ("order_id") VALUES ($1) ON CONFLICT DO NOTHING`: "INSERT",
		`WITH due AS (SELECT id FROM fulfillment_records) UPDATE fulfillment_records SET status = 'x'`: "SELECT",
		`CREATE TABLE fulfillment_records (id bigint)`: "DDL",
		"": "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}
