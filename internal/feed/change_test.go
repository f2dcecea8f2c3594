package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	t.Run("empty means whole table", func(t *testing.T) {
		f, err := ParseFilter("")
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("eq filter", func(t *testing.T) {
		f, err := ParseFilter("project_id=eq.42")
		require.NoError(t, err)
		assert.Equal(t, "project_id", f.Column)
		assert.Equal(t, "42", f.Value)
		assert.Equal(t, "project_id=eq.42", f.String())
	})

	t.Run("value may contain dots and equals", func(t *testing.T) {
		f, err := ParseFilter("name=eq.a.b=c")
		require.NoError(t, err)
		assert.Equal(t, "a.b=c", f.Value)
	})

	invalid := []string{
		"project_id",
		"project_id=neq.1",
		"project_id=gt.1",
		"Project=eq.1",
		"project id=eq.1",
		"project_id=eq.",
	}
	for _, expr := range invalid {
		t.Run("rejects "+expr, func(t *testing.T) {
			_, err := ParseFilter(expr)
			assert.Error(t, err)
		})
	}
}

func TestFilterMatches(t *testing.T) {
	c := Change{Table: "messages", Keys: map[string]string{"id": "m1", "project_id": "P"}}

	var none *Filter
	assert.True(t, none.Matches(c))
	assert.True(t, (&Filter{Column: "project_id", Value: "P"}).Matches(c))
	assert.False(t, (&Filter{Column: "project_id", Value: "Q"}).Matches(c))
	assert.False(t, (&Filter{Column: "client_id", Value: "P"}).Matches(c))
}

func TestFeedKeys(t *testing.T) {
	keys := feedKeys(Change{
		Table: "projects",
		Keys:  map[string]string{"id": "p1", "user_id": "u1", "client_id": ""},
	})

	assert.ElementsMatch(t, []string{
		"projects",
		"projects:id=eq.p1",
		"projects:user_id=eq.u1",
	}, keys)
}
