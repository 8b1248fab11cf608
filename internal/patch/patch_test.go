package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Name         Field[string] `json:"name"`
	CoverPhotoID Field[string] `json:"coverPhotoId"`
	Order        Field[int]    `json:"order"`
}

func TestFieldDistinguishesAbsentNullAndValue(t *testing.T) {
	var b body
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Cup","coverPhotoId":null}`), &b))

	assert.True(t, b.Name.Set)
	assert.False(t, b.Name.Null)
	assert.Equal(t, "Cup", b.Name.Value)

	assert.True(t, b.CoverPhotoID.Set)
	assert.True(t, b.CoverPhotoID.Null)
	assert.Nil(t, b.CoverPhotoID.Ptr())

	assert.False(t, b.Order.Set)
}

func TestFieldRejectsWrongType(t *testing.T) {
	var b body
	assert.Error(t, json.Unmarshal([]byte(`{"order":"first"}`), &b))
}

func TestColumns(t *testing.T) {
	var c Columns
	assert.Empty(t, c.Clause())

	c.Add("name", "Cup")
	c.Add("slug", "cup")
	where := c.Placeholder("id-1")

	assert.Equal(t, []string{"name = $1", "slug = $2"}, c.Sets)
	assert.Equal(t, "$3", where)
	assert.Equal(t, "name = $1, slug = $2", c.Clause())
	assert.Equal(t, []any{"Cup", "cup", "id-1"}, c.Args)
}
