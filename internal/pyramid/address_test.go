package pyramid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWrapsX(t *testing.T) {
	tests := []struct {
		in   Address
		want Address
	}{
		{Address{Zoom: 3, X: -1, Y: 2}, Address{Zoom: 3, X: 7, Y: 2}},
		{Address{Zoom: 3, X: 8, Y: 2}, Address{Zoom: 3, X: 0, Y: 2}},
		{Address{Zoom: 3, X: 17, Y: 2}, Address{Zoom: 3, X: 1, Y: 2}},
		{Address{Zoom: 3, X: -9, Y: 2}, Address{Zoom: 3, X: 7, Y: 2}},
		{Address{Zoom: 0, X: 5, Y: 0}, Address{Zoom: 0, X: 0, Y: 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize(), "Normalize(%v)", tt.in)
	}
}

func TestWrappedAddressesShareKey(t *testing.T) {
	for z := 1; z < 12; z++ {
		n := 1 << z
		for _, x := range []int{0, 1, n - 1} {
			a := Address{Zoom: z, X: x, Y: 0}
			assert.Equal(t, a.Key(), Address{Zoom: z, X: x + n, Y: 0}.Key())
			assert.Equal(t, a.Key(), Address{Zoom: z, X: x - n, Y: 0}.Key())
			assert.Equal(t, a.QuadKey(), Address{Zoom: z, X: x - 3*n, Y: 0}.QuadKey())
		}
	}
}

func TestValidRejectsRowsOutsideProjection(t *testing.T) {
	assert.False(t, Address{Zoom: 8, X: 100, Y: 300}.Valid())
	assert.False(t, Address{Zoom: 8, X: 100, Y: 256}.Valid())
	assert.False(t, Address{Zoom: 8, X: 100, Y: -1}.Valid())
	assert.True(t, Address{Zoom: 8, X: 100, Y: 255}.Valid())
	assert.True(t, Address{Zoom: 8, X: -100, Y: 0}.Valid())
}

func TestParent(t *testing.T) {
	assert.Equal(t, Address{Zoom: 14, X: 1, Y: 2}, Address{Zoom: 15, X: 3, Y: 5}.Parent())
	assert.Equal(t, Address{Zoom: 12, X: 0, Y: 0}, Address{Zoom: 15, X: 3, Y: 5}.Parent().Parent().Parent())
}

func TestQuadKey(t *testing.T) {
	assert.Equal(t, "213", Address{Zoom: 3, X: 3, Y: 5}.QuadKey())
	assert.Equal(t, "", Address{Zoom: 0}.QuadKey())
	assert.Equal(t, "0000", Address{Zoom: 4}.QuadKey())
	assert.Equal(t, "3333", Address{Zoom: 4, X: 15, Y: 15}.QuadKey())
}

func TestQuadKeyRoundTrip(t *testing.T) {
	for z := range 9 {
		for x := range 1 << z {
			for y := range 1 << z {
				a := Address{Zoom: z, X: x, Y: y}
				got, err := ParseQuadKey(a.QuadKey())
				require.NoError(t, err)
				if diff := cmp.Diff(a, got); diff != "" {
					t.Errorf("ParseQuadKey(%v.QuadKey()) mismatch (-want+got):\n%v", a, diff)
				}
			}
		}
	}
	for z := range MaxZoom {
		a := Address{Zoom: z, X: 1<<z - 1, Y: 1<<z - 1}
		got, err := ParseQuadKey(a.QuadKey())
		require.NoError(t, err)
		if diff := cmp.Diff(a, got); diff != "" {
			t.Errorf("ParseQuadKey(%v.QuadKey()) mismatch (-want+got):\n%v", a, diff)
		}
	}
}

func TestParseQuadKeyRejectsBadDigits(t *testing.T) {
	_, err := ParseQuadKey("0124")
	assert.ErrorIs(t, err, ErrInvalidQuadKey)

	_, err = ParseQuadKey("012301230123012301230123012301230")
	assert.ErrorIs(t, err, ErrInvalidQuadKey)
}

func TestKeyRoundTrip(t *testing.T) {
	for _, a := range []Address{{Zoom: 0}, {Zoom: 15, X: 3, Y: 5}, {Zoom: 4, X: -1, Y: 3}} {
		got, err := ParseKey(a.Key())
		require.NoError(t, err)
		assert.Equal(t, a.Normalize(), got)
	}
	assert.Equal(t, "4,15,3", Address{Zoom: 4, X: -1, Y: 3}.Key())
}

func TestParseKeyRejectsGarbage(t *testing.T) {
	for _, key := range []string{"", "1,2", "a,b,c", "1,2,3,4", "31,0,0"} {
		_, err := ParseKey(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
