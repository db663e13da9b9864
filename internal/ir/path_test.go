package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	doc := O("user", O("name", "Manolo", "roles", A("admin", "dev")), "empty", IRNull{})

	tests := []struct {
		path  string
		want  IRValue
		found bool
	}{
		{"user.name", IRString("Manolo"), true},
		{"user.roles.1", IRString("dev"), true},
		{"user.roles.2", nil, false},
		{"user.roles.-1", nil, false},
		{"user.roles.x", nil, false},
		{"user.missing", nil, false},
		{"user.name.deeper", nil, false},
		{"empty", IRNull{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := Lookup(doc, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}

	root, found := Lookup(doc, "")
	assert.True(t, found)
	assert.Equal(t, doc, root)
}

func TestSetCopiesAlongPath(t *testing.T) {
	orig := O("a", O("b", 1), "other", O("k", 1))

	out, err := Set(orig, "a.b", IRInt(2))
	require.NoError(t, err)
	assert.Equal(t, O("a", O("b", 2), "other", O("k", 1)), out)
	assert.Equal(t, O("a", O("b", 1), "other", O("k", 1)), orig)

	created, err := Set(IRObject{}, "x.y.z", IRBool(true))
	require.NoError(t, err)
	assert.Equal(t, O("x", O("y", O("z", true))), created)

	overNull, err := Set(O("x", IRNull{}), "x.y", IRInt(1))
	require.NoError(t, err)
	assert.Equal(t, O("x", O("y", 1)), overNull)
}

func TestSetErrors(t *testing.T) {
	_, err := Set(IRObject{}, "", IRInt(1))
	assert.ErrorContains(t, err, "empty path")

	_, err = Set(IRObject{}, "a..b", IRInt(1))
	assert.ErrorContains(t, err, "empty path segment")

	_, err = Set(O("a", 1), "a.b", IRInt(1))
	assert.ErrorContains(t, err, "not an object")
}

func TestDelete(t *testing.T) {
	orig := O("a", O("b", 1, "c", 2), "d", 3)

	assert.Equal(t, O("a", O("c", 2), "d", 3), Delete(orig, "a.b"))
	assert.Equal(t, O("a", O("b", 1, "c", 2)), Delete(orig, "d"))
	assert.Equal(t, orig, Delete(orig, "x.y"))
	assert.Equal(t, O("a", O("b", 1, "c", 2), "d", 3), orig)
}
