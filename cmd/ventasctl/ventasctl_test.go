package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventas.io/internal/identity"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenMintProducesValidToken(t *testing.T) {
	subject := uuid.New()
	out, err := execute(t, "token", "mint", "--secret", "s3cret", "--subject", subject.String(), "--audience", "ventas")
	require.NoError(t, err)

	v, err := identity.NewJWTValidator("s3cret", "ventas")
	require.NoError(t, err)
	got, err := v.Validate(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, subject, got)
}

func TestTokenMintRejectsBadSubject(t *testing.T) {
	_, err := execute(t, "token", "mint", "--secret", "s3cret", "--subject", "nope")
	assert.ErrorContains(t, err, "invalid --subject")
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "migrate", "status", "--database-url", "")
	assert.ErrorContains(t, err, "missing database url")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ventasctl")
}
