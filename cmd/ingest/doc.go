/*
Ingest stores local files in the media library.

Each file goes through the same path as an upload: it gets a unique
"<base>_<unix seconds><ext>" name, videos are normalized so portrait clips
display correctly, a thumbnail is generated, and the file is optionally
assigned to a category.

Usage:

	ingest [-category ID] FILE...

At most ten files are accepted per run. The kind of each file is taken
from its extension. The exit status is 1 when any file was rejected or only
partially stored.
*/
package main
