package shared

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Page holds limit/offset pagination for list queries
type Page struct {
	Limit  int
	Offset int
}

// NewPage normalizes limit and offset: a non-positive limit becomes the default,
// limits above MaxPageLimit are clamped, negative offsets become zero.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// DefaultPage returns the first page with the default limit
func DefaultPage() Page {
	return NewPage(0, 0)
}
