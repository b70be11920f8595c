package feed

import (
	"fmt"
	"math/rand"
	"time"
)

var (
	tallFillers   = []FillerCategory{FillerLava}
	squareFillers = []FillerCategory{FillerTrace, FillerStrings, FillerBubble}
	smallFillers  = []FillerCategory{FillerSpinner}
	wideFillers   = []FillerCategory{FillerSwitch, FillerGravity}
)

// Curator reshuffles a fetched batch and decorates it with synthetic filler
// widgets so the two-column masonry layout stays gap-free. The output keeps
// the interleaved walk order; the rendering surface assigns actual columns.
type Curator struct {
	profile Profile
	rnd     *rand.Rand
}

func NewCurator(profile Profile) *Curator {
	return &Curator{
		profile: profile,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run curates one fetched batch: uniform shuffle, an occasional wide widget
// in the first half of large batches, then greedy two-column packing with
// gap-filling. Input order is discarded; this is the only probabilistic
// ordering step in the pipeline.
func (c *Curator) Run(items []Item) []Item {
	batch := make([]Item, len(items))
	copy(batch, items)

	c.rnd.Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})

	batch = c.insertSparseWidget(batch)

	return c.pack(batch)
}

// insertSparseWidget drops a single wide widget at a random position within
// the profile's insertion window of a sufficiently large batch, to break up
// long runs of similar content. Independent of the gap-filling below.
func (c *Curator) insertSparseWidget(batch []Item) []Item {
	if len(batch) <= c.profile.SparseMinBatch {
		return batch
	}

	pos := c.profile.SparseMinPos + c.rnd.Intn(c.profile.SparseSpread)
	if pos >= len(batch) {
		return batch
	}

	filler := c.newFiller(wideFillers[c.rnd.Intn(len(wideFillers))])
	batch = append(batch, Item{})
	copy(batch[pos+1:], batch[pos:])
	batch[pos] = filler

	return batch
}

// pack walks the batch as a queue, simulating two column-height accumulators.
// When the columns drift apart beyond the profile thresholds it inserts a
// filler sized to the gap instead of the next real item; the batch cursor
// does not advance, so the gap is re-measured before the next placement.
func (c *Curator) pack(batch []Item) []Item {
	optimized := make([]Item, 0, len(batch))

	var col1, col2 float64
	fillersInserted := 0

	// Size of the output when the last filler went in. Starts negative so
	// an early insertion is allowed.
	lastFillerAt := -2 * c.profile.FillerSpacing

	index := 0
	for index < len(batch) {
		diff := col1 - col2
		if diff < 0 {
			diff = -diff
		}

		isGap := diff > c.profile.GapSmall
		isSpaced := len(optimized)-lastFillerAt > c.profile.FillerSpacing
		isNearEnd := index >= len(batch)-c.profile.TailGuard

		if isGap && fillersInserted < c.profile.MaxFillers && isSpaced && !isNearEnd {
			var category FillerCategory
			switch {
			case diff > c.profile.GapTall:
				category = tallFillers[c.rnd.Intn(len(tallFillers))]
			case diff > c.profile.GapSquare:
				category = squareFillers[c.rnd.Intn(len(squareFillers))]
			default:
				category = smallFillers[c.rnd.Intn(len(smallFillers))]
			}

			filler := c.newFiller(category)
			height := c.profile.FillerHeight(category)

			if col1 <= col2 {
				col1 += height
			} else {
				col2 += height
			}

			optimized = append(optimized, filler)
			fillersInserted++
			lastFillerAt = len(optimized)
			continue
		}

		item := batch[index]
		height := c.profile.ItemHeight(item)

		if item.IsFullSpan(c.profile.WideAspect) {
			// Full-span entries reset column parity.
			top := col1
			if col2 > top {
				top = col2
			}
			col1 = top + height
			col2 = top + height
		} else if col1 <= col2 {
			col1 += height
		} else {
			col2 += height
		}

		optimized = append(optimized, item)
		index++
	}

	return optimized
}

func (c *Curator) newFiller(category FillerCategory) Item {
	return Item{
		ID:             fmt.Sprintf("%s%s_%d", FillerIDPrefix, category, time.Now().UnixNano()),
		Kind:           KindFiller,
		FillerCategory: category,
	}
}
