package header_test

import (
	"testing"

	"github.com/dacapoday/columnar/header"
	"github.com/stretchr/testify/require"
)

func TestKindDispatch(t *testing.T) {
	cases := []struct {
		h    header.Header
		want header.Kind
	}{
		{header.Header{}, header.KindSmall},
		{header.Header{HasRefs: true}, header.KindMedium},
		{header.Header{HasRefs: true, ContextBit: true}, header.KindBigBlob},
		{header.Header{IsInner: true}, header.KindInner},
		{header.Header{IsInner: true, HasRefs: true, ContextBit: true}, header.KindInner},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.h.Kind())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	blob := make([]byte, header.Size+4)
	for i := range blob {
		blob[i] = 0xff
	}
	h := header.Header{HasRefs: true, ContextBit: true}
	header.Encode(blob, h)
	require.Equal(t, h, header.Decode(blob))
	require.Equal(t, header.KindBigBlob, header.Decode(blob).Kind())
	// reserved bits must be cleared
	require.Equal(t, byte(0), blob[1])
}
