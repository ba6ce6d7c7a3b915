package document

import (
	"fmt"
	"testing"
)

func makeFragments(n int) []Fragment {
	frags := make([]Fragment, n)
	for i := range frags {
		frags[i] = Fragment{Text: fmt.Sprintf("text-%d", i), Kind: KindSlideText}
	}
	return frags
}

func TestBatchEmpty(t *testing.T) {
	if got := Batch(nil, 45); got != nil {
		t.Errorf("Batch(nil) = %v, want nil", got)
	}
	if got := Batch([]Fragment{}, 45); got != nil {
		t.Errorf("Batch(empty) = %v, want nil", got)
	}
}

func TestBatchSingleOversized(t *testing.T) {
	frags := makeFragments(1)
	batches := Batch(frags, 45)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 1 {
		t.Fatalf("batch length = %d, want 1", len(batches[0]))
	}
}

func TestBatchZeroSizeKeepsEverything(t *testing.T) {
	frags := makeFragments(7)
	batches := Batch(frags, 0)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 7 {
		t.Fatalf("batch length = %d, want 7", len(batches[0]))
	}
}

func TestBatchConcatenationReconstructsInput(t *testing.T) {
	for _, tc := range []struct {
		n, size, wantBatches int
	}{
		{1, 1, 1},
		{45, 45, 1},
		{46, 45, 2},
		{90, 45, 2},
		{91, 45, 3},
		{100, 7, 15},
	} {
		frags := makeFragments(tc.n)
		batches := Batch(frags, tc.size)
		if len(batches) != tc.wantBatches {
			t.Errorf("n=%d size=%d: got %d batches, want %d", tc.n, tc.size, len(batches), tc.wantBatches)
		}

		var total int
		for i, b := range batches {
			if len(b) == 0 {
				t.Errorf("n=%d size=%d: batch %d is empty", tc.n, tc.size, i)
			}
			if len(b) > tc.size {
				t.Errorf("n=%d size=%d: batch %d has %d elements", tc.n, tc.size, i, len(b))
			}
			for _, f := range b {
				if f.Text != frags[total].Text {
					t.Fatalf("n=%d size=%d: element %d = %q, want %q", tc.n, tc.size, total, f.Text, frags[total].Text)
				}
				total++
			}
		}
		if total != tc.n {
			t.Errorf("n=%d size=%d: concatenation has %d elements", tc.n, tc.size, total)
		}
	}
}

func TestTexts(t *testing.T) {
	frags := []Fragment{
		{Text: "Bonjour", Kind: KindSlideText},
		{Text: "le monde", Kind: KindTableCell},
	}
	texts := Texts(frags)
	if len(texts) != 2 || texts[0] != "Bonjour" || texts[1] != "le monde" {
		t.Errorf("Texts = %v", texts)
	}
	if got := Texts(nil); len(got) != 0 {
		t.Errorf("Texts(nil) = %v, want empty", got)
	}
}
