package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

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
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

var (
	pageParam    = "page"
	perPageParam = "per_page"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Pagination struct {
	Page    int
	PerPage int
}

// Bind parses the page/per_page query params, falling back to page 1 and the
// default page size. per_page is capped at maxPageSize.
func (p *Pagination) Bind(ctx echo.Context) {
	p.Page = 1
	p.PerPage = defaultPageSize

	if v, err := strconv.Atoi(ctx.QueryParam(pageParam)); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(ctx.QueryParam(perPageParam)); err == nil && v > 0 {
		if v > maxPageSize {
			v = maxPageSize
		}
		p.PerPage = v
	}
}

// bounds returns the slice bounds of the requested page over total items.
func (p Pagination) bounds(total int) (lo, hi int) {
	lo = (p.Page - 1) * p.PerPage
	if lo > total {
		lo = total
	}
	hi = lo + p.PerPage
	if hi > total {
		hi = total
	}
	return lo, hi
}

// Paginated is the envelope returned by list endpoints.
type Paginated struct {
	Items      interface{} `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

func newPaginated(p Pagination, items interface{}, total int) Paginated {
	return Paginated{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: (total + p.PerPage - 1) / p.PerPage,
	}
}

// bindUserQueryFilter parses the user listing filters by hand; is_active and
// the created range are typed and malformed values are simply ignored.
func bindUserQueryFilter(ctx echo.Context) *user.QueryFilter {
	filter := &user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Role:   ctx.QueryParam("role"),
	}
	if v := ctx.QueryParam("is_active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &b
		}
	}
	if v := ctx.QueryParam("created_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedFrom = t
		}
	}
	if v := ctx.QueryParam("created_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedTo = t
		}
	}
	filter.Clean()
	return filter
}
