package vaultdb

import (
	"testing"
	"time"

	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/proposal"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	pol, err := policy.FromPolicy("vault", "multi_a(2,[aaaaaaaa]02"+rep("11", 32)+",[bbbbbbbb]02"+rep("22", 32)+")", "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	return NewVault(pol, VaultMetadata{Name: "test"}, "deadbeef", []string{"aaaaaaaa", "bbbbbbbb"}, time.Now())
}

func rep(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestSavePolicyRejectsEmptyMembers(t *testing.T) {
	s := New()
	v := testVault(t)
	err := s.SavePolicy("ev1", v, nil)
	require.ErrorIs(t, err, ErrEmptyMembers)
}

func TestSaveAndGetVault(t *testing.T) {
	s := New()
	v := testVault(t)
	require.NoError(t, s.SavePolicy("ev1", v, []string{"aaaaaaaa"}))

	got, ok := s.GetVault("ev1")
	require.True(t, ok)
	require.Equal(t, v.ID, got.ID)
}

func TestSaveProposalRequiresExistingVault(t *testing.T) {
	s := New()
	err := s.SaveProposal("ev2", VaultIdentifier{9}, proposal.Proposal{})
	require.ErrorIs(t, err, ErrVaultNotFound)
}

func TestSaveProposalAndApproval(t *testing.T) {
	s := New()
	v := testVault(t)
	require.NoError(t, s.SavePolicy("ev1", v, []string{"aaaaaaaa"}))
	require.NoError(t, s.SaveProposal("ev2", v.ID, proposal.Proposal{Kind: proposal.KindSpending}))

	_, ok := s.GetProposal("ev2")
	require.True(t, ok)

	err := s.SaveApprovedProposal("ev2", "aaaaaaaa", "ev3", time.Now())
	require.NoError(t, err)
	require.Len(t, s.Approvals("ev2"), 1)

	err = s.SaveApprovedProposal("unknown", "aaaaaaaa", "ev4", time.Now())
	require.ErrorIs(t, err, ErrProposalNotFound)
}

func TestSaveCompletedProposalSchedulesSync(t *testing.T) {
	s := New()
	v := testVault(t)
	require.NoError(t, s.SavePolicy("ev1", v, []string{"aaaaaaaa"}))

	now := v.CreatedAt.Add(10 * time.Second)
	s.SaveCompletedProposal("ev5", v.ID, proposal.Proposal{Kind: proposal.KindSpending}, now)

	pending := s.PendingImmediateSync()
	require.Len(t, pending, 1)
	require.Equal(t, v.ID, pending[0])

	require.Empty(t, s.PendingImmediateSync())
}

func TestPendingEventsFIFO(t *testing.T) {
	s := New()
	s.SavePendingEvent(PendingEvent{ID: "a"})
	s.SavePendingEvent(PendingEvent{ID: "b"})

	drained := s.GetPendingEvents()
	require.Equal(t, []PendingEvent{{ID: "a"}, {ID: "b"}}, drained)
	require.Empty(t, s.GetPendingEvents())
}

func TestDeleteGenericEventID(t *testing.T) {
	s := New()
	v := testVault(t)
	require.NoError(t, s.SavePolicy("ev1", v, []string{"aaaaaaaa"}))

	s.DeleteGenericEventID("ev1")
	_, ok := s.GetVault("ev1")
	require.False(t, ok)

	// idempotent
	s.DeleteGenericEventID("ev1")
	s.DeleteGenericEventID("never-existed")
}
