package api

const DefaultLimit = 20

const MaxLimit = 200

// NormalizePage clamps page/limit query values to safe bounds: pages below 1
// become 1, a missing or non-positive limit becomes DefaultLimit, and limits
// above MaxLimit are capped.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
