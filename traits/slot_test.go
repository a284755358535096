// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package traits

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestSlotNames(t *testing.T) {
	require := require.New(t)

	slots := AllSlots()
	require.Len(slots, NumSlots)
	for _, s := range slots {
		require.True(s.Valid())
		parsed, err := ParseSlot(s.String())
		require.NoError(err)
		require.Equal(s, parsed)
	}

	require.False(Slot(NumSlots).Valid())
	require.Equal("slot(8)", Slot(NumSlots).String())
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Slot
		wantErr error
	}{
		{name: "lower", input: "back", want: Back},
		{name: "mixed case", input: " Mouth ", want: Mouth},
		{name: "misc", input: "MISC", want: Misc},
		{name: "unknown", input: "wings", wantErr: ErrUnknownSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlot(tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == nil {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMapCatalog(t *testing.T) {
	require := require.New(t)

	contract := ids.GenerateTestShortID()
	catalog := NewMapCatalog()
	_, ok := catalog.Gene(contract)
	require.False(ok)

	catalog.Register(contract, &StaticGene{
		Tokens: map[uint64]StaticToken{
			7: {Slot: Tail, Value: "fluffy"},
		},
	})
	gene, ok := catalog.Gene(contract)
	require.True(ok)

	slot, err := gene.TraitType(context.Background(), 7)
	require.NoError(err)
	require.Equal(Tail, slot)

	value, err := gene.TraitValue(context.Background(), 7)
	require.NoError(err)
	require.Equal("fluffy", value)

	_, err = gene.TraitType(context.Background(), 8)
	require.ErrorIs(err, ErrUnknownSlot)

	require.True(ComponentRef{}.IsZero())
	require.False(ComponentRef{Contract: contract}.IsZero())
}
