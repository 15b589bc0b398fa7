package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListQuery(t *testing.T) {
	q, args := listQuery("SELECT * FROM orders", ListFilter{})
	assert.Equal(t, "SELECT * FROM orders ORDER BY created_at DESC", q)
	assert.Empty(t, args)

	q, args = listQuery("SELECT * FROM orders", ListFilter{UserID: "u1", Limit: 5})
	assert.Equal(t, "SELECT * FROM orders WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2", q)
	assert.Equal(t, []any{"u1", 5}, args)
}
