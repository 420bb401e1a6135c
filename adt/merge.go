package adt

import (
	"github.com/wowemulation-dev/warcraft-go/chunk"
)

// parseRoot populates t's MCNK grid and feature flags from the root
// file's discovered chunks (spec.md §4.8 parse pass). Root retains
// heights, normals, vertex colours, shadow and legacy liquid — exactly
// the sub-chunks a Cataclysm+ tex0/obj0 split never carries.
func parseRoot(t *Tile, root *discoveredFile) error {
	t.Chunks = make([]MCNK, mcnkGridSize*mcnkGridSize)
	t.HasMH2O = has(root.records, "MH2O")
	t.HasMFBO = has(root.records, "MFBO")
	t.HasMLDD = has(root.records, "MLDD")

	seq := 0
	for _, rec := range root.records {
		if rec.Tag.String() != "MCNK" {
			continue
		}
		mc, meta, err := parseMCNK(root.data, rec)
		idx := mcnkIndex(meta, seq)
		seq++
		if err != nil {
			// Malformed MCNK sub-chunk tree: capture as a per-chunk
			// warning by skipping it, keep parsing the rest of the tile
			// (spec.md §7's "truncated or malformed secondary chunk ...
			// keep parsing remaining chunks, return partial result").
			continue
		}
		if idx < 0 || idx >= len(t.Chunks) {
			continue
		}
		t.Chunks[idx] = *mc
	}
	return nil
}

// mergeTex overlays a _tex0.adt sibling's per-MCNK texture layers and
// alpha maps onto t, per spec.md §4.8's split-file merge rule: "tex file
// contributes per-MCNK texture layers and alpha maps". A conflict (root
// already populated a layer list for the same MCNK) resolves to the
// sibling's copy.
func mergeTex(t *Tile, tex *discoveredFile) error {
	seq := 0
	for _, rec := range tex.records {
		if rec.Tag.String() != "MCNK" {
			continue
		}
		mc, meta, err := parseMCNK(tex.data, rec)
		idx := mcnkIndex(meta, seq)
		seq++
		if err != nil || idx < 0 || idx >= len(t.Chunks) {
			continue
		}
		t.Chunks[idx].Present = true
		if mc.Layers != nil {
			t.Chunks[idx].Layers = mc.Layers
		}
		if mc.AlphaMaps != nil {
			t.Chunks[idx].AlphaMaps = mc.AlphaMaps
		}
	}
	return nil
}

// mergeObj overlays an _obj0.adt sibling's per-MCNK doodad/WMO reference
// indices plus the tile-level model/WMO name lists, per spec.md §4.8:
// "obj file contributes per-MCNK doodad/WMO reference indices plus the
// tile-level model/WMO name lists".
func mergeObj(t *Tile, obj *discoveredFile) error {
	if rec, ok := chunk.FindFirst(obj.records, "MMDX"); ok {
		t.ModelNames = splitCStrings(obj.data[rec.DataStart : rec.DataStart+int64(rec.Size)])
	}
	if rec, ok := chunk.FindFirst(obj.records, "MWMO"); ok {
		t.WMONames = splitCStrings(obj.data[rec.DataStart : rec.DataStart+int64(rec.Size)])
	}

	seq := 0
	for _, rec := range obj.records {
		if rec.Tag.String() != "MCNK" {
			continue
		}
		mc, meta, err := parseMCNK(obj.data, rec)
		idx := mcnkIndex(meta, seq)
		seq++
		if err != nil || idx < 0 || idx >= len(t.Chunks) {
			continue
		}
		t.Chunks[idx].Present = true
		if mc.DoodadRefs != nil {
			t.Chunks[idx].DoodadRefs = mc.DoodadRefs
		}
		if mc.WMORefs != nil {
			t.Chunks[idx].WMORefs = mc.WMORefs
		}
	}
	return nil
}

func has(records []chunk.Record, tag string) bool {
	_, ok := chunk.FindFirst(records, tag)
	return ok
}

// splitCStrings splits a buffer of NUL-terminated strings (MMDX/MWMO's
// layout) into a slice, dropping the trailing empty string left by a
// final terminator.
func splitCStrings(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			if i > start {
				out = append(out, string(b[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}
