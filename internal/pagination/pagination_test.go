package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowSmallTotal(t *testing.T) {
	for total := 1; total <= 7; total++ {
		for cur := 1; cur <= total; cur++ {
			w := ComputeWindow(cur, total, 7)
			assert.Equal(t, seq(1, total), w.Pages)
			assert.False(t, w.ShowLeftDots)
			assert.False(t, w.ShowRightDots)
			assert.False(t, w.ShowFirst)
			assert.False(t, w.ShowLast)
		}
	}
}

func TestWindowLargeTotal(t *testing.T) {
	for _, limit := range []int{3, 5, 7, 8} {
		for total := limit + 1; total <= 40; total++ {
			for cur := 1; cur <= total; cur++ {
				w := ComputeWindow(cur, total, limit)
				require.Len(t, w.Pages, limit-2, "cur=%d total=%d limit=%d", cur, total, limit)
				assert.GreaterOrEqual(t, w.Pages[0], 2)
				assert.LessOrEqual(t, w.Pages[len(w.Pages)-1], total-1)
				if cur > 1 && cur < total {
					assert.Contains(t, w.Pages, cur)
				}
				assert.Equal(t, w.Pages[0] > 2, w.ShowLeftDots)
				assert.Equal(t, w.Pages[len(w.Pages)-1] < total-1, w.ShowRightDots)
				assert.True(t, w.ShowFirst)
				assert.True(t, w.ShowLast)
			}
		}
	}
}

func TestWindowExample(t *testing.T) {
	w := ComputeWindow(10, 20, 7)
	assert.Equal(t, []int{8, 9, 10, 11, 12}, w.Pages)
	assert.True(t, w.ShowLeftDots)
	assert.True(t, w.ShowRightDots)
	assert.Equal(t, seq(2, 7), w.LeftHidden)
	assert.Equal(t, seq(13, 19), w.RightHidden)

	w = ComputeWindow(1, 20, 7)
	assert.Equal(t, []int{2, 3, 4, 5, 6}, w.Pages)
	assert.False(t, w.ShowLeftDots)
	assert.True(t, w.ShowRightDots)
}

func TestWindowClampsAndLimits(t *testing.T) {
	w := ComputeWindow(99, 10, 7)
	assert.Equal(t, []int{5, 6, 7, 8, 9}, w.Pages)

	w = ComputeWindow(-3, 10, 1)
	assert.Equal(t, []int{2}, w.Pages)

	assert.Empty(t, ComputeWindow(1, 0, 7).Pages)
}

func TestItems(t *testing.T) {
	w := ComputeWindow(10, 20, 7)

	items := w.Items(10, Expand{})
	require.Len(t, items, 9)
	assert.Equal(t, Item{Kind: PageItem, Page: 1}, items[0])
	assert.Equal(t, LeftDots, items[1].Kind)
	assert.Equal(t, Item{Kind: PageItem, Page: 10, Current: true}, items[4])
	assert.Equal(t, RightDots, items[7].Kind)
	assert.Equal(t, Item{Kind: PageItem, Page: 20}, items[8])

	items = w.Items(10, Expand{Left: true, Right: true})
	require.Len(t, items, 22)
	assert.Equal(t, Item{Kind: LeftDots, Expanded: true}, items[1])
	assert.Equal(t, Item{Kind: RightDots, Expanded: true}, items[20])
	var pages []int
	for _, it := range items {
		if it.Kind == PageItem {
			pages = append(pages, it.Page)
		}
	}
	assert.Equal(t, seq(1, 20), pages)
}

func TestItemsExpandOneSide(t *testing.T) {
	w := ComputeWindow(10, 20, 7)

	items := w.Items(10, Expand{Right: true})
	var left, right []Item
	for _, it := range items {
		switch it.Kind {
		case LeftDots:
			left = append(left, it)
		case RightDots:
			right = append(right, it)
		}
	}
	require.Len(t, left, 1)
	require.Len(t, right, 1)
	assert.False(t, left[0].Expanded)
	assert.True(t, right[0].Expanded)
	assert.Equal(t, 20, items[len(items)-1].Page)
}

func TestPagesPartitionCollection(t *testing.T) {
	for n := 0; n <= 25; n++ {
		items := seq(1, n)
		for _, per := range []int{1, 4, 6, 10} {
			total := TotalPages(n, per)
			var joined []int
			for p := 1; p <= total; p++ {
				page := Slice(items, p, per)
				assert.LessOrEqual(t, len(page), per)
				assert.NotEmpty(t, page)
				joined = append(joined, page...)
			}
			assert.Equal(t, items, joined, "n=%d per=%d", n, per)
		}
	}
}

func TestSliceOutOfRange(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, []string{"c"}, Slice(items, 9, 2))
	assert.Equal(t, []string{"a", "b"}, Slice(items, 0, 2))
	assert.Empty(t, Slice([]string{}, 1, 2))
}

func TestVisibleAndClamp(t *testing.T) {
	assert.False(t, Visible(0))
	assert.False(t, Visible(1))
	assert.True(t, Visible(2))
	assert.Equal(t, 1, Clamp(0, 0))
	assert.Equal(t, 3, Clamp(5, 3))
}

func TestParseExpand(t *testing.T) {
	assert.Equal(t, Expand{}, ParseExpand(""))
	assert.Equal(t, Expand{Left: true, Right: true}, ParseExpand(" Right,left "))
	assert.Equal(t, "left", ParseExpand("left,bogus").String())
	assert.Equal(t, Expand{Right: true}, Expand{Left: true, Right: true}.ToggleLeft())
}
