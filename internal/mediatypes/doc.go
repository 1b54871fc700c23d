// Package mediatypes defines asset kinds and the file extensions that map to
// them.
//
// It has no dependencies beyond the standard library so every other package
// can import it without cycles.
//
//	kind := mediatypes.KindOf("clip.MOV") // mediatypes.KindVideo
//	if kind.HasThumbnail() {
//	    // generate a preview
//	}
package mediatypes
