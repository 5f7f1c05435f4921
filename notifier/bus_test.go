package notifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3yekn/coinstr/vaultdb"
)

func TestSubscribeReceivesPublishedNotification(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(vaultdb.Notification{Kind: vaultdb.NewPolicy})

	select {
	case n := <-ch:
		require.Equal(t, vaultdb.NewPolicy, n.Kind)
	default:
		t.Fatal("expected a buffered notification")
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe()
	require.Equal(t, 1, b.Len())
	cancel()
	require.Equal(t, 0, b.Len())
}

func TestPublishDropsOldestForFullBuffer(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(vaultdb.Notification{Kind: vaultdb.NewProposal, ProposalID: string(rune('a' + i%26))})
	}

	require.Len(t, ch, subscriberBuffer)
}

func TestPublishToNoSubscribersIsANoop(t *testing.T) {
	b := New()
	b.Publish(vaultdb.Notification{Kind: vaultdb.NewApproval})
}
