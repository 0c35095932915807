package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/babel/internal/ir"
)

func TestSaveReplica_InsertAssignsID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := &ir.Replica{
		Namespace: "web",
		Parent:    0,
		Order:     3,
		IsFolder:  true,
		Fields: ir.Object{
			ir.FieldPageTitle: ir.String("Home"),
			ir.FieldCreatedOn: ir.Int(1700000000),
			"ratio":           ir.Float(0.25),
		},
	}
	require.NoError(t, s.SaveReplica(ctx, r))
	assert.NotZero(t, r.ID)

	loaded, err := s.LoadReplica(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "web", loaded.Namespace)
	assert.Equal(t, int64(3), loaded.Order)
	assert.True(t, loaded.IsFolder)
	assert.True(t, ir.Equal(r.Fields, loaded.Fields), "fields round trip: got %v", loaded.Fields)
	assert.IsType(t, ir.Int(0), loaded.Fields[ir.FieldCreatedOn])
}

func TestSaveReplica_Update(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := seedReplica(t, s, 10, "web", 0)
	r.Parent = 4
	r.Set(ir.FieldPublished, ir.Bool(true))
	require.NoError(t, s.SaveReplica(ctx, r))

	loaded, err := s.LoadReplica(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), loaded.Parent)
	assert.Equal(t, ir.Bool(true), loaded.Get(ir.FieldPublished))
}

func TestSaveReplica_UpdateMissing(t *testing.T) {
	s := createTestStore(t)

	err := s.SaveReplica(context.Background(), &ir.Replica{ID: 99, Namespace: "web"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrNotFound)
}

func TestLoadReplica_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadReplica(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrNotFound)
}

func TestInsertReplica_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	seedReplica(t, s, 1, "web", 0)

	err := s.InsertReplica(context.Background(), &ir.Replica{ID: 1, Namespace: "de"})
	assert.Error(t, err)
}

func TestListReplicas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedReplica(t, s, 3, "de", 0)
	seedReplica(t, s, 1, "web", 0)
	seedReplica(t, s, 2, "web", 1)

	all, err := s.ListReplicas(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})

	web, err := s.ListReplicas(ctx, "web")
	require.NoError(t, err)
	assert.Len(t, web, 2)
}

func TestChildCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedReplica(t, s, 1, "web", 0)
	seedReplica(t, s, 2, "web", 1)
	seedReplica(t, s, 3, "web", 1)

	n, err := s.ChildCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ChildCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteReplica_RemovesSlots(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedReplica(t, s, 1, "web", 0)
	require.NoError(t, s.SetSlotValue(ctx, 1, "links", "web:1"))

	require.NoError(t, s.DeleteReplica(ctx, 1))

	_, err := s.LoadReplica(ctx, 1)
	assert.ErrorIs(t, err, ir.ErrNotFound)

	slots, err := s.SlotValues(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, slots)

	assert.ErrorIs(t, s.DeleteReplica(ctx, 1), ir.ErrNotFound)
}
