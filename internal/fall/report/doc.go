// Package report assembles the result of one fall analysis into a
// self-contained document.
//
// Responsibilities: composing the report (ID, timestamp, headline with
// rounded height, event diagnostics, contacts, rule battery, coaching),
// rendering the plain-text summary, and exporting both forms through an
// fsutil.FileSystem. The report is the unit stored by internal/db.
package report
