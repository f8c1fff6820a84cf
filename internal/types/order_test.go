package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_Validate(t *testing.T) {
	order := &Order{
		ID:          "o1",
		OrderStatus: OrderStatusProcessing,
		Candidates: []Candidate{
			{ID: "c1", Email: "not-an-email"},
		},
	}
	assert.Error(t, order.Validate())

	order.Candidates[0].Email = "jane@example.com"
	assert.NoError(t, order.Validate())
}

func TestOrder_FindCandidate(t *testing.T) {
	order := &Order{Candidates: []Candidate{{ID: "c1"}, {ID: "c2"}}}

	c, ok := order.FindCandidate("c2")
	require.True(t, ok)
	assert.Equal(t, ID("c2"), c.ID)

	_, ok = order.FindCandidate("c3")
	assert.False(t, ok)
}

func TestCandidate_ServiceName(t *testing.T) {
	c := Candidate{Services: []ServiceRef{{ID: "s1", DisplayName: "Education"}, {ID: "s2"}}}
	catalog := ServiceCatalog{"s2": {Title: "Criminal Record"}}

	assert.Equal(t, "Education", c.ServiceName("s1", catalog))
	assert.Equal(t, "Criminal Record", c.ServiceName("s2", catalog))
	assert.Equal(t, "s3", c.ServiceName("s3", catalog))

	c.ApplyCatalog(catalog)
	assert.Equal(t, "Criminal Record", c.Services[1].DisplayName)
}
