// Package database provides SQLite-based crawl history for wikiexport.
//
// The HistoryDB stores:
//   - one row per crawl run with its final summary
//   - the outcome of every URL the run attempted
//
// It backs the history and compare commands. A crawl only writes to it;
// no crawl state is ever resumed from history.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file under the XDG data directory.
package database
