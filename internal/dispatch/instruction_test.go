package dispatch

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_sales/internal/sales"
)

func TestInstructionDiscriminators(t *testing.T) {
	cases := map[Kind]string{
		KindInitialize: "afaf6d1f0d989bed",
		KindDeposit:    "f223c68952e1f2b6",
		KindPurchase:   "155d719ac1a0f2a8",
		KindClose:      "62a5c9b16c41ce60",
	}
	for kind, want := range cases {
		disc := discriminators[kind]
		assert.Equal(t, want, hex.EncodeToString(disc[:]), kind.String())
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	for _, ins := range []Instruction{
		Initialize{PricePerUnit: 10, InitialQuantity: 100, EndTime: 1_800_000_000},
		Deposit{Amount: 7},
		Purchase{Quantity: 5},
		Close{},
	} {
		data, err := EncodeInstruction(ins)
		require.NoError(t, err)
		got, err := DecodeInstruction(data)
		require.NoError(t, err)
		assert.Equal(t, ins, got)
	}
}

func TestInitializeArgumentLayout(t *testing.T) {
	data, err := EncodeInstruction(Initialize{PricePerUnit: 10, InitialQuantity: 100, EndTime: -1})
	require.NoError(t, err)
	assert.Equal(t,
		"afaf6d1f0d989bed"+"0a00000000000000"+"6400000000000000"+"ffffffffffffffff",
		hex.EncodeToString(data),
	)
}

func TestDecodeInstructionAcceptsLegacyInitializeTag(t *testing.T) {
	disc := instructionDiscriminator("init_sale_account")
	data := append(disc[:], make([]byte, 24)...)
	ins, err := DecodeInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, KindInitialize, ins.Kind())
}

func TestDecodeInstructionErrors(t *testing.T) {
	purchase, err := EncodeInstruction(Purchase{Quantity: 1})
	require.NoError(t, err)

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: sales.ErrMalformedInstruction},
		{name: "short tag", data: []byte{1, 2, 3}, want: sales.ErrMalformedInstruction},
		{name: "unknown tag", data: make([]byte, 16), want: sales.ErrUnknownInstruction},
		{name: "truncated args", data: purchase[:12], want: sales.ErrMalformedInstruction},
		{name: "trailing bytes", data: append(append([]byte{}, purchase...), 0), want: sales.ErrMalformedInstruction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInstruction(tc.data)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
