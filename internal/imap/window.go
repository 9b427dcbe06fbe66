package imap

// seqWindow computes the 1-based sequence range covering the most recent
// `limit` messages starting `offset` back from the newest, for a folder
// containing `total` messages. The range clamps to the oldest available
// message; ok is false when the window lies entirely past the oldest one,
// which callers translate to an empty page rather than an error.
func seqWindow(total uint32, limit, offset int) (from, to uint32, ok bool) {
	if total == 0 || limit <= 0 || offset < 0 {
		return 0, 0, false
	}

	if uint32(offset) >= total {
		return 0, 0, false
	}

	to = total - uint32(offset)
	if uint32(limit) >= to {
		from = 1
	} else {
		from = to - uint32(limit) + 1
	}

	return from, to, true
}
