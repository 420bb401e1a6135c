package mpq

import "github.com/wowemulation-dev/warcraft-go/werr"

// localeNeutral is the locale ID StormLib uses for "no particular
// locale" entries (spec.md §4.4).
const localeNeutral = 0

// lookup resolves a filename to its block table index, consulting the
// HET table first when present (spec.md §4.5 step 4) and otherwise
// probing the legacy hash table directly. Both paths apply the same
// locale preference: an exact match for wantLocale, else the neutral
// locale, else any locale, matching StormLib's SFileOpenFileEx tie-break.
func (a *Archive) lookup(name string, wantLocale uint16) (blockIndex uint32, found bool) {
	if a.het != nil {
		if idx, ok := a.lookupHet(name, wantLocale); ok {
			return idx, true
		}
		// spec.md §9: an archive carrying HET/BET data that disagrees
		// with its own legacy tables is a corrupt archive, not a reason
		// to silently prefer one source; lookups still fall through to
		// the legacy path below so a HET table that didn't index a name
		// (e.g. partially rebuilt) doesn't hide a real legacy entry.
	}
	return a.lookupLegacy(name, wantLocale)
}

// lookupHet probes the HET table's open-addressed bucket array, per
// spec.md §4.4: compute the bucket from the high bits of the masked file
// hash, compare the stored short hash (low 8 bits) at each linearly
// probed bucket, and resolve matches through the BET index array.
func (a *Archive) lookupHet(name string, wantLocale uint16) (uint32, bool) {
	het := a.het
	fileHash, nameHash1 := hetHash(name, uint(het.hashEntrySize))
	if het.bucketCount == 0 {
		return 0, false
	}
	startBucket := uint32(fileHash % uint64(het.bucketCount))

	var candidates []uint32
	for i := uint32(0); i < het.bucketCount; i++ {
		bucket := (startBucket + i) % het.bucketCount
		stored := het.nameHashes[bucket]
		if stored == 0xFF {
			// Empty bucket terminates the probe sequence (spec.md §4.4).
			break
		}
		if stored != nameHash1 {
			continue
		}
		if bucket >= uint32(len(het.fileIndices)) {
			continue
		}
		betIndex := het.fileIndices[bucket]
		candidates = append(candidates, betIndex)
	}

	if a.bet == nil {
		return 0, false
	}
	return a.resolveBetCandidates(candidates, wantLocale)
}

// resolveBetCandidates applies the locale tie-break across a set of BET
// entry indices that all matched the same short hash.
func (a *Archive) resolveBetCandidates(betIndices []uint32, wantLocale uint16) (uint32, bool) {
	var neutral, any uint32
	haveNeutral, haveAny := false, false

	for _, idx := range betIndices {
		if idx >= uint32(len(a.bet.entries)) {
			continue
		}
		if idx >= uint32(len(a.blockTable)) {
			continue
		}
		locale := a.entryLocale(idx)
		if locale == wantLocale {
			return idx, true
		}
		if locale == localeNeutral && !haveNeutral {
			neutral, haveNeutral = idx, true
		}
		if !haveAny {
			any, haveAny = idx, true
		}
	}
	if haveNeutral {
		return neutral, true
	}
	if haveAny {
		return any, true
	}
	return 0, false
}

// entryLocale returns the legacy hash table locale recorded for a block
// index, or localeNeutral if the block index has no legacy hash entry
// (archives with only HET/BET tables carry no locale information
// elsewhere, so such entries are treated as neutral).
func (a *Archive) entryLocale(blockIndex uint32) uint16 {
	for _, he := range a.hashTable {
		if he.blockIndex == blockIndex {
			return he.locale
		}
	}
	return localeNeutral
}

// lookupLegacy probes the classic hash table with linear probing,
// wrapping around the table, per spec.md §4.4.
func (a *Archive) lookupLegacy(name string, wantLocale uint16) (uint32, bool) {
	if len(a.hashTable) == 0 {
		return 0, false
	}
	tableOffset, nameA, nameB := FileNameHash(name)
	tableSize := uint32(len(a.hashTable))
	start := tableOffset % tableSize

	var neutral, any hashEntry
	haveNeutral, haveAny := false, false

	for i := uint32(0); i < tableSize; i++ {
		idx := (start + i) % tableSize
		e := a.hashTable[idx]
		if e.blockIndex == hashEntryEmpty {
			break
		}
		if e.blockIndex == hashEntryDeleted {
			continue
		}
		if e.nameHashA != nameA || e.nameHashB != nameB {
			continue
		}
		if e.locale == wantLocale {
			return e.blockIndex, true
		}
		if e.locale == localeNeutral && !haveNeutral {
			neutral, haveNeutral = e, true
		}
		if !haveAny {
			any, haveAny = e, true
		}
	}
	if haveNeutral {
		return neutral.blockIndex, true
	}
	if haveAny {
		return any.blockIndex, true
	}
	return 0, false
}

// errFileNotFound is the exported lookup-miss error, shared by ReadFile
// and the listfile-backed List implementation.
func errFileNotFound(name string) error {
	return werr.New(werr.FileNotFound, "mpq: "+name)
}
