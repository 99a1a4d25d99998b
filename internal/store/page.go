package store

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page number and a page size.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps raw query values into a usable page.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
