package viewer

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

func discardLogger() *slog.Logger {
	return logging.Discard()
}

func openIssue(id string, iid int64, title string) domain.Issue {
	return domain.Issue{ID: domain.ItemID(id), IID: iid, State: domain.StateOpened, Title: title}
}

func closedIssue(id string, iid int64, title string) domain.Issue {
	return domain.Issue{ID: domain.ItemID(id), IID: iid, State: domain.StateClosed, Title: title}
}

// assertPartitioned checks every id lives in exactly one bucket matching its
// state and carries the matching toggle label.
func assertPartitioned(t *testing.T, b *Board) {
	t.Helper()
	for _, bucket := range []Bucket{BucketOpen, BucketClosed} {
		for _, card := range b.Cards(bucket) {
			assert.Equal(t, 1, b.Occurrences(card.Issue.ID), "issue %s duplicated", card.Issue.ID)
			assert.Equal(t, bucket, BucketFor(card.Issue.State))
			assert.Equal(t, ToggleLabel(card.Issue.State), card.ToggleLabel)
		}
	}
}

func TestToggleLabel(t *testing.T) {
	assert.Equal(t, LabelClose, ToggleLabel(domain.StateOpened))
	assert.Equal(t, LabelOpen, ToggleLabel(domain.StateClosed))
	assert.Equal(t, BucketOpen, BucketFor(domain.StateOpened))
	assert.Equal(t, BucketClosed, BucketFor(domain.StateClosed))
}

func TestBoard_Load(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{
		openIssue("1", 1, "first"),
		closedIssue("2", 2, "second"),
		openIssue("3", 3, "third"),
	})

	open := b.Cards(BucketOpen)
	require.Len(t, open, 2)
	assert.Equal(t, "first", open[0].Issue.Title)
	assert.Equal(t, "third", open[1].Issue.Title)
	require.Len(t, b.Cards(BucketClosed), 1)
	assertPartitioned(t, b)

	t.Run("reload replaces everything", func(t *testing.T) {
		b.Load([]domain.Issue{closedIssue("9", 9, "only")})

		assert.Empty(t, b.Cards(BucketOpen))
		require.Len(t, b.Cards(BucketClosed), 1)
		_, _, ok := b.Card("1")
		assert.False(t, ok)
	})
}

func TestBoard_Upsert(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{openIssue("1", 1, "old")})

	b.Upsert(openIssue("1", 1, "new"))
	b.Upsert(openIssue("1", 1, "newer"))

	require.Len(t, b.Cards(BucketOpen), 1)
	card, bucket, ok := b.Card("1")
	require.True(t, ok)
	assert.Equal(t, BucketOpen, bucket)
	assert.Equal(t, "newer", card.Issue.Title)

	b.Upsert(closedIssue("1", 1, "closed now"))
	assert.Empty(t, b.Cards(BucketOpen))
	assert.Len(t, b.Cards(BucketClosed), 1)
	assertPartitioned(t, b)
}

func TestBoard_Move(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{openIssue("1", 1, "a"), openIssue("2", 2, "b")})
	require.NoError(t, b.AppendComment("1", domain.Comment{Body: "kept"}))

	moved := b.Move("1", domain.StateClosed)

	require.True(t, moved)
	card, bucket, _ := b.Card("1")
	assert.Equal(t, BucketClosed, bucket)
	assert.Equal(t, LabelOpen, card.ToggleLabel)
	assert.Equal(t, "a", card.Issue.Title)
	assert.Len(t, card.Comments, 1, "move leaves the content block alone")
	assertPartitioned(t, b)

	t.Run("repeated move is idempotent", func(t *testing.T) {
		assert.True(t, b.Move("1", domain.StateClosed))
		assert.Equal(t, 1, b.Occurrences("1"))
		assertPartitioned(t, b)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.False(t, b.Move("404", domain.StateClosed))
		assert.Equal(t, 0, b.Occurrences("404"))
	})
}

func TestBoard_Present(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{{ID: "1", IID: 1, State: domain.StateOpened, Title: "T", Description: "D"}})
	require.NoError(t, b.AppendComment("1", domain.Comment{Body: "x"}))
	_, err := b.ToggleForm("1")
	require.NoError(t, err)

	ok := b.Present(domain.Issue{ID: "1", Title: "T2"})

	require.True(t, ok)
	card, _, _ := b.Card("1")
	assert.Equal(t, "T2", card.Issue.Title)
	assert.Equal(t, "D", card.Issue.Description, "missing fields keep their value")
	assert.Empty(t, card.Comments)
	assert.False(t, card.CommentsVisible)
	assert.False(t, card.FormVisible)

	assert.False(t, b.Present(domain.Issue{ID: "2"}))
}

func TestBoard_Comments(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{openIssue("1", 1, "a")})

	require.NoError(t, b.AppendComment("1", domain.Comment{Body: "one"}))
	require.NoError(t, b.AppendComment("1", domain.Comment{Body: "two"}))

	card, _, _ := b.Card("1")
	require.Len(t, card.Comments, 2)
	assert.Equal(t, "two", card.Comments[1].Body)
	assert.True(t, card.CommentsVisible)

	err := b.AppendComment("404", domain.Comment{Body: "lost"})
	assert.ErrorIs(t, err, apperrors.ErrStaleReference)

	t.Run("replace toggles visibility", func(t *testing.T) {
		visible, err := b.ReplaceComments("1", []domain.Comment{{Body: "fresh"}})
		require.NoError(t, err)
		assert.False(t, visible)

		visible, err = b.ReplaceComments("1", []domain.Comment{{Body: "fresh"}})
		require.NoError(t, err)
		assert.True(t, visible)

		card, _, _ := b.Card("1")
		require.Len(t, card.Comments, 1)
		assert.Equal(t, "fresh", card.Comments[0].Body)
	})

	t.Run("returned cards are copies", func(t *testing.T) {
		card, _, _ := b.Card("1")
		card.Comments[0].Body = "mutated"

		again, _, _ := b.Card("1")
		assert.Equal(t, "fresh", again.Comments[0].Body)
	})
}

func TestBoard_Form(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{openIssue("1", 1, "a")})

	visible, err := b.ToggleForm("1")
	require.NoError(t, err)
	assert.True(t, visible)

	require.NoError(t, b.SetFormVisible("1", false))
	card, _, _ := b.Card("1")
	assert.False(t, card.FormVisible)

	_, err = b.ToggleForm("404")
	assert.ErrorIs(t, err, apperrors.ErrStaleReference)
	assert.ErrorIs(t, b.SetFormVisible("404", true), apperrors.ErrStaleReference)
}

func TestBoard_OnChange(t *testing.T) {
	b := NewBoard()
	calls := 0
	b.OnChange(func() {
		calls++
		// Reading from the callback must not deadlock.
		_ = b.Cards(BucketOpen)
	})

	b.Load([]domain.Issue{openIssue("1", 1, "a")})
	b.Move("1", domain.StateClosed)
	b.Move("404", domain.StateClosed)

	assert.Equal(t, 2, calls)
}

func TestBoard_ConcurrentMoves(t *testing.T) {
	b := NewBoard()
	b.Load([]domain.Issue{openIssue("1", 1, "a"), openIssue("2", 2, "b")})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		state := domain.StateClosed
		if i%2 == 0 {
			state = domain.StateOpened
		}
		go func() {
			defer wg.Done()
			b.Move("1", state)
		}()
		go func() {
			defer wg.Done()
			b.Upsert(domain.Issue{ID: "2", IID: 2, State: state, Title: "b"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, b.Occurrences("1"))
	assert.Equal(t, 1, b.Occurrences("2"))
	assertPartitioned(t, b)
}
