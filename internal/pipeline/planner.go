package pipeline

// BlockSize picks the processing block geometry for a dataset. It grows
// the block width in native-tile increments while the cumulative sample
// area (at native tile height) stays under budget, then grows the height
// the same way using the resulting width. Both dimensions are clamped to
// the dataset. The two-phase growth biases toward wide, I/O-friendly
// blocks and is deterministic for a given budget and tile geometry.
//
// budget is a sample count, not a byte count.
func BlockSize(tileWidth, tileHeight, dsWidth, dsHeight, budget int) (int, int) {
	width := tileWidth
	height := tileHeight

	tileArea := tileWidth * tileHeight
	area := tileArea
	for width < dsWidth && area+tileArea < budget {
		width += tileWidth
		area += tileArea
	}
	if dsWidth < width {
		width = dsWidth
	}

	rowArea := width * tileHeight
	area = rowArea
	for height < dsHeight && area+rowArea < budget {
		height += tileHeight
		area += rowArea
	}
	if dsHeight < height {
		height = dsHeight
	}

	return width, height
}
