package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
credentials:
  email: ada@example.com
  password: s3cret
trip_search:
  from: Lisbon
  to: Porto
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"credentials", "trip_search"}, s.Names())

	v, ok := s.Lookup("credentials.email")
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", v)

	_, ok = s.Lookup("credentials.token")
	assert.False(t, ok)
	_, ok = s.Lookup("credentials")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("credentials: [a, b]"))
	assert.Error(t, err)

	_, err = Parse([]byte("bad-name:\n  a: b\n"))
	assert.Error(t, err)

	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestMerge(t *testing.T) {
	base, err := Parse([]byte(sample))
	require.NoError(t, err)

	merged := base.Merge(Set{"credentials": {"email": "bob@example.com"}, "extra": {"k": "v"}})

	assert.Equal(t, "bob@example.com", merged["credentials"]["email"])
	assert.Equal(t, "s3cret", merged["credentials"]["password"])
	assert.Equal(t, "v", merged["extra"]["k"])
	assert.Equal(t, "ada@example.com", base["credentials"]["email"], "merge must not mutate the receiver")
}

func TestWithEnv(t *testing.T) {
	base, err := Parse([]byte(sample))
	require.NoError(t, err)

	s := base.WithEnv([]string{
		"PAGEFLOW_FIXTURE_CREDENTIALS_PASSWORD=from-env",
		"PAGEFLOW_FIXTURE_TRIP_SEARCH_TO=Faro",
		"PAGEFLOW_FIXTURE_PAYMENT_CARD=4242",
		"PAGEFLOW_FIXTURE_BROKEN",
		"HOME=/root",
	})

	assert.Equal(t, "from-env", s["credentials"]["password"])
	assert.Equal(t, "Faro", s["trip_search"]["to"])
	assert.Equal(t, "4242", s["payment"]["card"])
	assert.Equal(t, "s3cret", base["credentials"]["password"])
}

func TestReferencesAndRequire(t *testing.T) {
	refs := References("${credentials.email} / ${ trip_search.from } / ${uuid()} / $HOME")
	assert.Equal(t, []string{"credentials.email", "trip_search.from"}, refs)

	s, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, s.Require(refs...))

	err = s.Require("credentials.email", "credentials.otp", "payment.card", "credentials.otp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials.otp")
	assert.Contains(t, err.Error(), "payment.card")
}

func TestVars(t *testing.T) {
	s := Set{"credentials": {"email": "a@b"}}
	vars := s.Vars()
	rec, ok := vars["credentials"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "a@b", rec["email"])
}
