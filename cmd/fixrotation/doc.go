/*
Fixrotation re-encodes videos that still carry rotation metadata.

Each video in VIDEO_DIR is probed; clips whose stream reports a non-zero
rotation are listed and, after confirmation, re-encoded with the metadata
rotation policy (90/-270 counter-clockwise, -90/270 clockwise, 180 twice) so
the rotation lives in the pixels. Their thumbnails are regenerated.

Usage:

	fixrotation [-yes] [filename]

With a filename only that video is checked. On a terminal the tool asks
before changing anything; otherwise -yes is required.
*/
package main
