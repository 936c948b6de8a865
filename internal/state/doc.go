// Package state provides the file-backed thread store.
//
// Layout under the data directory:
//
//	threads/<owner>.json   thread index for one owner
//	threads/active.json    owner -> active thread id
//	messages/<thread>.json message snapshot for one thread
//
// All writes are atomic (temp file + rename). Reads degrade to empty
// results on missing or corrupt files so the chat stays usable without
// history.
package state

import "github.com/user/admitchat/internal/types"

// Compile-time interface compliance check.
var _ types.ThreadStore = (*ThreadStore)(nil)
