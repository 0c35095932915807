package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLinks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LinkSet
	}{
		{"empty", "", LinkSet{}},
		{"blank", "   ", LinkSet{}},
		{"single", "web:1", LinkSet{"web": 1}},
		{"many", "web:1;de:4;es:7;fr:10", LinkSet{"web": 1, "de": 4, "es": 7, "fr": 10}},
		{"unsorted", "fr:10;web:1", LinkSet{"web": 1, "fr": 10}},
		{"whitespace", " web : 1 ; de:4", LinkSet{"web": 1, "de": 4}},
		{"last wins", "web:1;web:2", LinkSet{"web": 2}},
		{"splits on first colon", "web:1", LinkSet{"web": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLinks(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeLinksMalformed(t *testing.T) {
	inputs := []string{
		"web",          // missing separator
		"web:1;de",     // second pair missing separator
		"web:1;",       // trailing empty pair
		":5",           // empty context key
		"web:abc",      // non-integer id
		"web:1:2",      // id part "1:2" is not an integer
		"web:1;;de:2",  // empty pair in the middle
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := DecodeLinks(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedLinkEntry))

			var malformed *MalformedLinkError
			require.ErrorAs(t, err, &malformed)
			assert.NotEmpty(t, malformed.Reason)
		})
	}
}

func TestEncodeLinks(t *testing.T) {
	encoded, ok := EncodeLinks(LinkSet{"web": 1, "de": 4, "fr": 10})
	require.True(t, ok)
	assert.Equal(t, "de:4;fr:10;web:1", encoded)

	encoded, ok = EncodeLinks(LinkSet{})
	assert.True(t, ok)
	assert.Equal(t, "", encoded)

	encoded, ok = EncodeLinks(nil)
	assert.False(t, ok, "nil link set is not applicable")
	assert.Equal(t, "", encoded)
}

func TestLinksRoundTrip(t *testing.T) {
	sets := []LinkSet{
		{},
		{"web": 1},
		{"web": 1, "de": 4, "es": 7, "fr": 10},
		{"intranet-de": 12345678901, "intranet": 0},
	}

	for _, set := range sets {
		encoded, ok := EncodeLinks(set)
		require.True(t, ok)
		decoded, err := DecodeLinks(encoded)
		require.NoError(t, err)
		assert.True(t, set.Equal(decoded), "round trip of %v gave %v", set, decoded)
	}
}

func TestLinksReencodeIsSemanticallyEqual(t *testing.T) {
	raw := "web:1;fr:10;de:4"
	decoded, err := DecodeLinks(raw)
	require.NoError(t, err)

	encoded, _ := EncodeLinks(decoded)
	again, err := DecodeLinks(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(again))
	assert.Equal(t, "de:4;fr:10;web:1", encoded)
}

func TestLinkSetHelpers(t *testing.T) {
	ls := LinkSet{"web": 1, "de": 4, "fr": 10}

	assert.Equal(t, []string{"de", "fr", "web"}, ls.Namespaces())
	assert.Equal(t, []int64{4, 10, 1}, ls.IDs())

	ns, ok := ls.NamespaceOf(10)
	assert.True(t, ok)
	assert.Equal(t, "fr", ns)

	_, ok = ls.NamespaceOf(99)
	assert.False(t, ok)

	without := ls.Without("de")
	assert.Equal(t, LinkSet{"web": 1, "fr": 10}, without)
	assert.Len(t, ls, 3, "Without must not mutate the receiver")

	assert.Equal(t, LinkSet{}, LinkSet(nil).Without("web"))
	assert.Nil(t, LinkSet(nil).Clone())
}

func TestNormalizeNamespace(t *testing.T) {
	// e + combining acute composes to the single code point U+00E9.
	assert.Equal(t, "caf\u00e9", NormalizeNamespace(" cafe\u0301 "))

	ls, err := DecodeLinks("cafe\u0301:3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), ls["caf\u00e9"])
}

func TestGroupKey(t *testing.T) {
	a := LinkSet{"web": 1, "de": 4}
	b := LinkSet{"de": 4, "web": 1}
	c := LinkSet{"web": 1, "de": 5}

	assert.Equal(t, GroupKey(a), GroupKey(b))
	assert.NotEqual(t, GroupKey(a), GroupKey(c))
	assert.Len(t, GroupKey(a), 64)
}
