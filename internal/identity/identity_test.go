package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestOwnerID_PrefersHost(t *testing.T) {
	r, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	r.Env = envOf(map[string]string{"TELEGRAM_USER_ID": "12345"})
	id, err := r.OwnerID()
	require.NoError(t, err)
	require.Equal(t, "12345", id)

	r.Env = envOf(map[string]string{"HQ_OWNER_ID": "me", "TELEGRAM_USER_ID": "12345"})
	id, err = r.OwnerID()
	require.NoError(t, err)
	require.Equal(t, "me", id)
}

func TestOwnerID_FallbackPersists(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, nil)
	require.NoError(t, err)
	r.Env = envOf(nil)

	first, err := r.OwnerID()
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^dev_[0-9a-z]{10}$`), first)

	again, err := New(dir, nil)
	require.NoError(t, err)
	again.Env = envOf(nil)

	second, err := again.OwnerID()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestOwnerID_ReadsStoredDevID(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, nil)
	require.NoError(t, err)
	r.Env = envOf(nil)
	require.NoError(t, r.Fallback.Write("hq_dev_uid", []byte("dev_abcdefghij")))

	id, err := r.OwnerID()
	require.NoError(t, err)
	require.Equal(t, "dev_abcdefghij", id)
}

func TestOwnerID_NoFallback(t *testing.T) {
	r := &Resolver{Env: envOf(nil)}
	_, err := r.OwnerID()
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestNewDevID_Unique(t *testing.T) {
	a, err := NewDevID()
	require.NoError(t, err)
	b, err := NewDevID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
