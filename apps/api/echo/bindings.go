package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/maktab-uz/maktab/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=field,-other`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads `page` and `page_size`, falling back to their defaults on bad input.
func bindPage(ctx echo.Context) *core.Page {
	page := new(core.Page)
	page.Number, _ = strconv.Atoi(ctx.QueryParam("page"))
	page.Size, _ = strconv.Atoi(ctx.QueryParam("page_size"))
	page.Clean()
	return page
}

// PageResponse is a page of a list endpoint with the links of its neighbours.
type PageResponse struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

func pageLink(ctx echo.Context, number int) *string {
	u := *ctx.Request().URL
	q := u.Query()
	q.Set("page", strconv.Itoa(number))
	u.RawQuery = q.Encode()
	link := ctx.Scheme() + "://" + ctx.Request().Host + u.RequestURI()
	return &link
}

func newPageResponse(ctx echo.Context, page *core.Page, count int, results interface{}) PageResponse {
	resp := PageResponse{Count: count, Results: results}
	if page.HasNext(count) {
		resp.Next = pageLink(ctx, page.Number+1)
	}
	if page.HasPrevious() {
		resp.Previous = pageLink(ctx, page.Number-1)
	}
	return resp
}

// IDsRequest is the body of the bulk lookup endpoints.
type IDsRequest struct {
	IDs []string `json:"ids"`
}
