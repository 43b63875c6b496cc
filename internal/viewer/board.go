package viewer

import (
	"sync"

	"github.com/lorrc/issue-relay/internal/core/domain"
	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

// Bucket is a display partition of the board.
type Bucket string

const (
	BucketOpen   Bucket = "open"
	BucketClosed Bucket = "closed"
)

// BucketFor returns the bucket an issue in the given state belongs to.
func BucketFor(state domain.IssueState) Bucket {
	if state == domain.StateOpened {
		return BucketOpen
	}
	return BucketClosed
}

// Toggle control labels.
const (
	LabelClose = "Close"
	LabelOpen  = "Open"
)

// ToggleLabel returns the label of the control that flips the state.
func ToggleLabel(state domain.IssueState) string {
	if state == domain.StateOpened {
		return LabelClose
	}
	return LabelOpen
}

// Card is the rendered representation of one issue.
type Card struct {
	Issue           domain.Issue
	ToggleLabel     string
	Comments        []domain.Comment
	CommentsVisible bool
	FormVisible     bool
}

// present replaces the content block. Like a fresh render it clears and
// hides the comments panel and hides the comment form.
func (c *Card) present(issue domain.Issue) {
	c.Issue = issue
	c.ToggleLabel = ToggleLabel(issue.State)
	c.Comments = nil
	c.CommentsVisible = false
	c.FormVisible = false
}

func (c *Card) clone() Card {
	out := *c
	out.Comments = append([]domain.Comment(nil), c.Comments...)
	return out
}

// Board holds the two buckets of cards. Every card is keyed by its issue
// id and lives in exactly one bucket. Board is safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	buckets  map[Bucket][]*Card
	onChange func()
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{
		buckets: map[Bucket][]*Card{
			BucketOpen:   nil,
			BucketClosed: nil,
		},
	}
}

// OnChange registers fn to be called after every mutation, outside the
// board lock.
func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Board) changed() {
	b.mu.RLock()
	fn := b.onChange
	b.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Load clears both buckets and renders each issue once into the bucket for
// its state.
func (b *Board) Load(issues []domain.Issue) {
	b.mu.Lock()
	b.buckets[BucketOpen] = nil
	b.buckets[BucketClosed] = nil
	for _, issue := range issues {
		b.insertLocked(issue)
	}
	b.mu.Unlock()

	b.changed()
}

// Upsert renders the issue into the bucket for its state. An existing card
// with the same id is replaced, so repeated inserts never duplicate.
func (b *Board) Upsert(issue domain.Issue) {
	b.mu.Lock()
	target := BucketFor(issue.State)
	if card, bucket, _ := b.findLocked(issue.ID); card != nil && bucket == target {
		card.present(issue)
		b.dropDuplicatesLocked(issue.ID, card)
	} else {
		b.removeLocked(issue.ID)
		b.insertLocked(issue)
	}
	b.mu.Unlock()

	b.changed()
}

// Move places the card in the bucket matching state, removing any copy
// from the other bucket, and updates its toggle label. The content block
// is left alone. It reports false if no card has the id.
func (b *Board) Move(id domain.ItemID, state domain.IssueState) bool {
	b.mu.Lock()
	card, _, _ := b.findLocked(id)
	if card == nil {
		b.mu.Unlock()
		return false
	}

	b.removeLocked(id)
	card.Issue.State = state
	card.ToggleLabel = ToggleLabel(state)
	target := BucketFor(state)
	b.buckets[target] = append(b.buckets[target], card)
	b.mu.Unlock()

	b.changed()
	return true
}

// Present re-renders the content block of an existing card from update.
// Fields missing from update keep their current value. It reports false if
// no card has the id.
func (b *Board) Present(update domain.Issue) bool {
	b.mu.Lock()
	card, _, _ := b.findLocked(update.ID)
	if card == nil {
		b.mu.Unlock()
		return false
	}

	merged := card.Issue
	if update.IID != 0 {
		merged.IID = update.IID
	}
	if update.State.IsValid() {
		merged.State = update.State
	}
	if update.Title != "" {
		merged.Title = update.Title
	}
	if update.Description != "" {
		merged.Description = update.Description
	}
	card.present(merged)
	b.mu.Unlock()

	b.changed()
	return true
}

// AppendComment adds one comment block to the card and shows its panel.
func (b *Board) AppendComment(id domain.ItemID, comment domain.Comment) error {
	b.mu.Lock()
	card, _, _ := b.findLocked(id)
	if card == nil {
		b.mu.Unlock()
		return apperrors.ErrStaleReference
	}
	card.Comments = append(card.Comments, comment)
	card.CommentsVisible = true
	b.mu.Unlock()

	b.changed()
	return nil
}

// ReplaceComments swaps the panel contents and flips its visibility. It
// returns whether the panel is now visible.
func (b *Board) ReplaceComments(id domain.ItemID, comments []domain.Comment) (bool, error) {
	b.mu.Lock()
	card, _, _ := b.findLocked(id)
	if card == nil {
		b.mu.Unlock()
		return false, apperrors.ErrStaleReference
	}
	card.Comments = append([]domain.Comment(nil), comments...)
	card.CommentsVisible = !card.CommentsVisible
	visible := card.CommentsVisible
	b.mu.Unlock()

	b.changed()
	return visible, nil
}

// SetFormVisible shows or hides the card's comment form.
func (b *Board) SetFormVisible(id domain.ItemID, visible bool) error {
	b.mu.Lock()
	card, _, _ := b.findLocked(id)
	if card == nil {
		b.mu.Unlock()
		return apperrors.ErrStaleReference
	}
	card.FormVisible = visible
	b.mu.Unlock()

	b.changed()
	return nil
}

// ToggleForm flips the comment form and returns its new visibility.
func (b *Board) ToggleForm(id domain.ItemID) (bool, error) {
	b.mu.Lock()
	card, _, _ := b.findLocked(id)
	if card == nil {
		b.mu.Unlock()
		return false, apperrors.ErrStaleReference
	}
	card.FormVisible = !card.FormVisible
	visible := card.FormVisible
	b.mu.Unlock()

	b.changed()
	return visible, nil
}

// Card returns a copy of the card with the given id and its bucket.
func (b *Board) Card(id domain.ItemID) (Card, Bucket, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	card, bucket, _ := b.findLocked(id)
	if card == nil {
		return Card{}, "", false
	}
	return card.clone(), bucket, true
}

// Cards returns copies of the cards in a bucket, in display order.
func (b *Board) Cards(bucket Bucket) []Card {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cards := make([]Card, 0, len(b.buckets[bucket]))
	for _, card := range b.buckets[bucket] {
		cards = append(cards, card.clone())
	}
	return cards
}

// Occurrences counts cards with the given id across both buckets.
func (b *Board) Occurrences(id domain.ItemID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, cards := range b.buckets {
		for _, card := range cards {
			if card.Issue.ID == id {
				n++
			}
		}
	}
	return n
}

func (b *Board) insertLocked(issue domain.Issue) {
	card := &Card{}
	card.present(issue)
	bucket := BucketFor(issue.State)
	b.buckets[bucket] = append(b.buckets[bucket], card)
}

// findLocked returns the first card with the id, open bucket first.
func (b *Board) findLocked(id domain.ItemID) (*Card, Bucket, int) {
	for _, bucket := range []Bucket{BucketOpen, BucketClosed} {
		for i, card := range b.buckets[bucket] {
			if card.Issue.ID == id {
				return card, bucket, i
			}
		}
	}
	return nil, "", -1
}

// removeLocked removes every card with the id from both buckets.
func (b *Board) removeLocked(id domain.ItemID) {
	for bucket, cards := range b.buckets {
		kept := cards[:0]
		for _, card := range cards {
			if card.Issue.ID != id {
				kept = append(kept, card)
			}
		}
		b.buckets[bucket] = kept
	}
}

// dropDuplicatesLocked removes every card with the id except keep.
func (b *Board) dropDuplicatesLocked(id domain.ItemID, keep *Card) {
	for bucket, cards := range b.buckets {
		kept := cards[:0]
		for _, card := range cards {
			if card.Issue.ID != id || card == keep {
				kept = append(kept, card)
			}
		}
		b.buckets[bucket] = kept
	}
}
