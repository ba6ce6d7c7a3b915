package document

// Batch splits fragments into the minimum number of order-preserving
// contiguous chunks of at most size elements each. Concatenating the chunks
// in order reconstructs fragments exactly. An empty input yields no chunks;
// size <= 0 yields a single chunk with everything.
func Batch(fragments []Fragment, size int) [][]Fragment {
	if len(fragments) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]Fragment{fragments}
	}

	var batches [][]Fragment
	for start := 0; start < len(fragments); start += size {
		end := start + size
		if end > len(fragments) {
			end = len(fragments)
		}
		batches = append(batches, fragments[start:end])
	}
	return batches
}

// Texts returns the ordered source strings of fragments, ready to be sent as
// one translation request.
func Texts(fragments []Fragment) []string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return texts
}
