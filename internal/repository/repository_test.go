package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Fingerprint(t *testing.T) {
	t.Parallel()

	fp := Fingerprint("token")

	require.Len(t, fp, 64, "hex encoded sha256")
	require.Equal(t, fp, Fingerprint("token"), "must be stable")
	require.NotEqual(t, fp, Fingerprint("token2"))
}
