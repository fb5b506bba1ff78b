package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
)

const orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrderings(ctx.QueryParam(orderingParam))
}

// filterParams are the query params bindFilter reads itself. Any other param is a field filter.
var filterParams = map[string]bool{
	"search": true, "from": true, "to": true, orderingParam: true, "limit": true, "offset": true,
}

// bindFilter reads a content.Filter from the query string. Times are RFC 3339.
func bindFilter(ctx echo.Context) (content.Filter, error) {
	params := ctx.QueryParams()
	filter := content.Filter{
		Search: params.Get("search"),
		Fields: make(map[string]string),
	}
	var fldErrs []core.FieldError

	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if v := params.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				fldErrs = append(fldErrs, core.FieldError{Field: name, Error: name + " must be an RFC 3339 time"})
				continue
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := params.Get(name); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				fldErrs = append(fldErrs, core.FieldError{Field: name, Error: name + " must be a number"})
				continue
			}
			*dst = i
		}
	}
	if len(fldErrs) > 0 {
		return content.Filter{}, core.NewValidationError(nil, fldErrs...)
	}

	for name, vals := range params {
		if !filterParams[name] && len(vals) > 0 {
			filter.Fields[name] = vals[0]
		}
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings
	return filter, nil
}
