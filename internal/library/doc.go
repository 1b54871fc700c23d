// Package library is the upload side of media storage: it writes new assets
// under unique names, bakes rotation into portrait videos, renders
// thumbnails, and records category associations. Deletes remove the file,
// its thumbnail and its association together.
package library
