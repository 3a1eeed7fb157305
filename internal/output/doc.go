// Package output writes an export directory:
//
//	<dir>/pages/<slug>.md   one Markdown file per page
//	<dir>/manifest.jsonl    one JSON object per written page, in write order
//
// A page file is written to a temp file and renamed into place before its
// manifest line is appended, and each manifest line is a single synced
// write, so an interrupted run leaves a manifest whose every line names a
// complete file.
package output
