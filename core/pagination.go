package core

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Page selects a window of a list query. Page numbers start at 1.
type Page struct {
	Number int `query:"page"`
	Size   int `query:"page_size"`
}

// Clean applies the default page size and clamps out of range values.
func (p *Page) Clean() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }
func (p Page) Limit() int  { return p.Size }

// HasNext reports whether more results exist after this page out of `count` total.
func (p Page) HasNext(count int) bool { return p.Offset()+p.Size < count }

func (p Page) HasPrevious() bool { return p.Number > 1 }
