package keys

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pnlprover/internal/field"
	"pnlprover/internal/tagging"
)

func TestExportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	e := &Export{
		Account: "0x1234",
		Secrets: []tagging.TaggingSecret{
			{
				Secret:    field.FromUint64(11),
				App:       field.FromUint64(22),
				Direction: tagging.DirectionInbound,
				Label:     "amm swaps",
			},
			{
				Secret:    field.FromUint64(33),
				App:       field.FromUint64(22),
				Direction: tagging.DirectionOutbound,
			},
		},
	}
	require.NoError(t, e.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, e.Account, loaded.Account)
	require.Len(t, loaded.Secrets, 2)
	require.True(t, loaded.Secrets[0].Secret.Equal(&e.Secrets[0].Secret))
	require.Equal(t, tagging.DirectionInbound, loaded.Secrets[0].Direction)
	require.Equal(t, "amm swaps", loaded.Secrets[0].Label)
}

func TestFindSecret(t *testing.T) {
	e := &Export{
		Secrets: []tagging.TaggingSecret{
			{Secret: field.FromUint64(1), App: field.FromUint64(10), Direction: tagging.DirectionOutbound},
			{Secret: field.FromUint64(2), App: field.FromUint64(10), Direction: tagging.DirectionInbound},
		},
	}
	appID := field.FromUint64(10)
	got, err := e.FindSecret(appID.String(), tagging.DirectionInbound)
	require.NoError(t, err)
	want := field.FromUint64(2)
	require.True(t, got.Secret.Equal(&want))

	_, err = e.FindSecret("", tagging.DirectionInbound)
	require.NoError(t, err)

	_, err = e.FindSecret("999", tagging.DirectionInbound)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
