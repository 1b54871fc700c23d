// Package converter implements the container converter daemon.
//
// The daemon lists the video directory, and for every file with the legacy
// extension (".mov" by default, matched case-insensitively) whose converted
// sibling does not exist yet it:
//
//  1. probes the file and plans a rotation fix with the shared media.RotationPolicy,
//  2. transcodes into a hidden pending file next to the target and verifies it is non-empty,
//  3. atomically renames the pending file to the target name,
//  4. deletes the legacy file,
//  5. renames the catalog association to the new filename.
//
// A catalog failure in step 5 is logged and counted as a catalog
// inconsistency; the file system change is not rolled back. [Converter.Reconcile]
// later repairs such rows.
//
// Passes run sequentially: once at start, then on every poll tick and, when
// enabled, shortly after fsnotify reports a new legacy file. Files younger
// than the settle age are left for a later pass so that uploads still being
// written are not converted.
package converter
