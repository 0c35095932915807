package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/babel/internal/ir"
)

func TestLinks_EmptySlotIsEmptySet(t *testing.T) {
	f := newFixture(t, "en,de")
	f.replica(5, "en", 0, 0, nil)

	ls, err := f.engine.Links(f.ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, ls)
	assert.Equal(t, "", f.rawLinks(5), "Links must not initialize")
}

func TestLinks_Malformed(t *testing.T) {
	f := newFixture(t, "en,de")
	f.replica(5, "en", 0, 0, nil)
	f.slot(5, ir.DefaultLinkSlot, "en:5;de")

	_, err := f.engine.Links(f.ctx, 5)
	require.Error(t, err)
	assert.True(t, IsMalformedLinkEntry(err))
}

func TestLinkedReplicas_SelfLinkInit(t *testing.T) {
	f := newFixture(t, "en,de")
	f.replica(5, "en", 0, 0, nil)

	ls, err := f.engine.LinkedReplicas(f.ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, ir.LinkSet{"en": 5}, ls)
	assert.Equal(t, "en:5", f.rawLinks(5))
	assert.Empty(t, f.cacheEvents(), "init must not refresh the cache")

	again, err := f.engine.LinkedReplicas(f.ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, ls, again)
}

func TestLinkedReplicas_MissingReplica(t *testing.T) {
	f := newFixture(t, "en,de")

	_, err := f.engine.LinkedReplicas(f.ctx, 42)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSetLinks_GroupSymmetry(t *testing.T) {
	f := newFixture(t, "en,de,fr")
	group := ir.LinkSet{"en": 5, "de": 7, "fr": 9}

	require.NoError(t, f.engine.SetLinks(f.ctx, group.IDs(), group, true))

	for _, id := range group.IDs() {
		ls, err := f.engine.Links(f.ctx, id)
		require.NoError(t, err)
		assert.True(t, group.Equal(ls), "replica %d holds %v", id, ls)
		assert.Equal(t, "de:7;en:5;fr:9", f.rawLinks(id))
	}
	assert.Len(t, f.cacheEvents(), 1)
}

func TestSetLinks_RefreshOnlyWhenRequestedAndNonEmpty(t *testing.T) {
	f := newFixture(t, "en,de")

	require.NoError(t, f.engine.SetLinks(f.ctx, nil, ir.LinkSet{"en": 5}, true))
	require.NoError(t, f.engine.SetLinks(f.ctx, []int64{5}, ir.LinkSet{"en": 5}, false))
	assert.Empty(t, f.cacheEvents())
}

func TestSetLinks_NilSetWritesNothing(t *testing.T) {
	f := newFixture(t, "en,de")
	f.slot(5, ir.DefaultLinkSlot, "en:5")

	require.NoError(t, f.engine.SetLinks(f.ctx, []int64{5}, nil, true))
	assert.Equal(t, "en:5", f.rawLinks(5))
	assert.Empty(t, f.cacheEvents())
}

func TestSetLinks_PartialFailureContinues(t *testing.T) {
	f := newFixture(t, "en,de,fr")
	f.host.failSlotWrite[7] = true
	group := ir.LinkSet{"en": 5, "de": 7, "fr": 9}

	err := f.engine.SetLinks(f.ctx, group.IDs(), group, false)
	require.Error(t, err)
	assert.True(t, IsPersistenceFailure(err))

	assert.Equal(t, "de:7;en:5;fr:9", f.rawLinks(5))
	assert.Equal(t, "de:7;en:5;fr:9", f.rawLinks(9))
	assert.Equal(t, "", f.rawLinks(7))
	assert.Contains(t, f.logs.String(), "link write failed")
}

func TestLink_MergesIntoGroup(t *testing.T) {
	f := newFixture(t, "en,de,fr")
	f.replica(5, "en", 0, 0, nil)
	f.replica(7, "de", 0, 0, nil)
	f.replica(9, "fr", 0, 0, nil)
	f.link(ir.LinkSet{"en": 5, "de": 7})

	union, err := f.engine.Link(f.ctx, 5, 9)
	require.NoError(t, err)
	assert.Equal(t, ir.LinkSet{"en": 5, "de": 7, "fr": 9}, union)

	for _, id := range []int64{5, 7, 9} {
		assert.Equal(t, "de:7;en:5;fr:9", f.rawLinks(id))
	}
	assert.Len(t, f.cacheEvents(), 1)
}

func TestLink_AlreadyLinkedIsNoop(t *testing.T) {
	f := newFixture(t, "en,de")
	f.replica(5, "en", 0, 0, nil)
	f.replica(7, "de", 0, 0, nil)
	f.link(ir.LinkSet{"en": 5, "de": 7})

	union, err := f.engine.Link(f.ctx, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, ir.LinkSet{"en": 5, "de": 7}, union)
	assert.Empty(t, f.cacheEvents())
}

func TestLink_Rejections(t *testing.T) {
	f := newFixture(t, "en,de;intranet,intranet-de")
	f.replica(5, "en", 0, 0, nil)
	f.replica(7, "de", 0, 0, nil)
	f.replica(8, "de", 0, 0, nil)
	f.replica(30, "intranet", 0, 0, nil)
	f.replica(40, "en", 0, 0, nil)
	f.replica(41, "de", 0, 0, nil)
	f.link(ir.LinkSet{"en": 5, "de": 7})
	f.link(ir.LinkSet{"en": 40, "de": 41})

	_, err := f.engine.Link(f.ctx, 5, 8)
	assert.True(t, IsNamespaceConflict(err), "de already taken: %v", err)

	_, err = f.engine.Link(f.ctx, 5, 30)
	assert.True(t, IsNamespaceNotInGroup(err), "intranet is not a sibling of en: %v", err)

	f.replica(50, "en", 0, 0, nil)
	_, err = f.engine.Link(f.ctx, 50, 41)
	assert.True(t, IsNamespaceConflict(err), "41 already belongs to a group: %v", err)

	_, err = f.engine.Link(f.ctx, 5, 999)
	assert.True(t, IsNotFound(err))

	assert.Equal(t, "de:7;en:5", f.rawLinks(5), "rejected links must not write")
}

func TestUnlink_RemovesFromGroup(t *testing.T) {
	f := newFixture(t, "en,de,fr")
	f.replica(5, "en", 0, 0, nil)
	f.replica(7, "de", 0, 0, nil)
	f.replica(9, "fr", 0, 0, nil)
	f.link(ir.LinkSet{"en": 5, "de": 7, "fr": 9})

	require.NoError(t, f.engine.Unlink(f.ctx, 7))

	assert.Equal(t, "en:5;fr:9", f.rawLinks(5))
	assert.Equal(t, "en:5;fr:9", f.rawLinks(9))
	assert.Equal(t, "de:7", f.rawLinks(7))
	assert.Len(t, f.cacheEvents(), 1)
}
