// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"math/bits"
)

// maxLeafIndex keeps every position and size arithmetic below 2^64.
const maxLeafIndex = 1<<62 - 1

// PosHeightInTree returns the height of the node at [pos], leaves being at
// height 0.
func PosHeightInTree(pos uint64) uint32 {
	pos++
	for !allOnes(pos) {
		pos = jumpLeft(pos)
	}
	return uint32(bits.Len64(pos) - 1)
}

func allOnes(n uint64) bool {
	return n != 0 && bits.OnesCount64(n) == bits.Len64(n)
}

// jumpLeft moves to the node at the same height in the left neighbouring
// subtree.
func jumpLeft(n uint64) uint64 {
	msb := uint64(1) << (bits.Len64(n) - 1)
	return n - (msb - 1)
}

// ParentOffset is the distance from a left child at [height] to its parent.
func ParentOffset(height uint32) uint64 {
	return 2 << height
}

// SiblingOffset is the distance between two siblings at [height].
func SiblingOffset(height uint32) uint64 {
	return (2 << height) - 1
}

// LeafIndexToMMRSize returns the size of the mmr right after the leaf with
// [index] is pushed.
func LeafIndexToMMRSize(index uint64) (uint64, error) {
	if index > maxLeafIndex {
		return 0, ErrPositionOverflow
	}
	leaves := index + 1
	return 2*leaves - uint64(bits.OnesCount64(leaves)), nil
}

// LeafIndexToPos returns the position of the leaf with [index].
func LeafIndexToPos(index uint64) (uint64, error) {
	size, err := LeafIndexToMMRSize(index)
	if err != nil {
		return 0, err
	}
	// the merges that complete after the leaf are exactly its trailing ones
	return size - uint64(bits.TrailingZeros64(index+1)) - 1, nil
}

// LeafCount returns the number of leaves in an mmr of [size] nodes.
func LeafCount(size uint64) (uint64, error) {
	var (
		count uint64
		total uint64
	)
	for _, peak := range GetPeaks(size) {
		height := PosHeightInTree(peak)
		count += 1 << height
		total += (2 << height) - 1
	}
	if total != size {
		return 0, ErrInvalidSize
	}
	return count, nil
}

func peakPosByHeight(height uint32) uint64 {
	return (1 << (height + 1)) - 2
}

// leftPeak returns the height and position of the highest peak of an mmr of
// [size] nodes.
func leftPeak(size uint64) (uint32, uint64) {
	height := uint32(1)
	prevPos := uint64(0)
	pos := peakPosByHeight(height)
	for pos < size && height < 62 {
		height++
		prevPos = pos
		pos = peakPosByHeight(height)
	}
	return height - 1, prevPos
}

// rightPeak moves from the peak at [pos] to the next peak on its right.
func rightPeak(height uint32, pos, size uint64) (uint32, uint64, bool) {
	pos += SiblingOffset(height)
	for pos > size-1 {
		if height == 0 {
			return 0, 0, false
		}
		pos -= ParentOffset(height - 1)
		height--
	}
	return height, pos, true
}

// GetPeaks returns the peak positions of an mmr of [size] nodes, left to
// right.
func GetPeaks(size uint64) []uint64 {
	if size == 0 {
		return nil
	}
	height, pos := leftPeak(size)
	peaks := []uint64{pos}
	for height > 0 {
		var ok bool
		height, pos, ok = rightPeak(height, pos, size)
		if !ok {
			break
		}
		peaks = append(peaks, pos)
	}
	return peaks
}
