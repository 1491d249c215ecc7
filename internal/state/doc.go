// Package state provides thread-safe snapshot storage for polled voting
// data.
//
// The poller writes the latest session and contestant roster into a Store;
// the UI reads consistent copies out of it. Failed polls keep the previous
// data visible and accumulate a failure streak so the UI can show an
// offline indicator.
package state
