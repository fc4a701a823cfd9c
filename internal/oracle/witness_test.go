package oracle_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"pnlprover/internal/field"
	"pnlprover/internal/oracle"
	"pnlprover/internal/poseidon"
	"pnlprover/internal/simulator"
)

func TestDeriveTreeIndex(t *testing.T) {
	oracleAddr := field.FromUint64(5)
	slot := field.FromUint64(1)
	token := field.FromUint64(9)

	derived := poseidon.Hash(slot, token)
	want := poseidon.HashWithSeparator(oracle.LeafIndexSeparator, []fr.Element{oracleAddr, derived})
	got := oracle.DeriveTreeIndex(oracleAddr, slot, token)
	require.True(t, got.Equal(&want))
}

func TestPriceWitness(t *testing.T) {
	oracleAddr := field.FromUint64(5)
	slot := field.FromUint64(1)
	token := field.FromUint64(9)

	n := simulator.NewNode()
	n.SetPrice(42, oracleAddr, slot, token, big.NewInt(1234))

	a := oracle.NewAssembler(n)
	w, price, err := a.PriceWitness(context.Background(), oracleAddr, slot, token, 42)
	require.NoError(t, err)
	require.Zero(t, price.Cmp(big.NewInt(1234)))
	require.NotNil(t, w)

	_, _, err = a.PriceWitness(context.Background(), oracleAddr, slot, token, 43)
	require.ErrorIs(t, err, oracle.ErrWitnessUnavailable)
}
