package zohocrm

import (
	"net/url"
	"strconv"
	"strings"
)

// EncodeParams encodes params as a query string, keys sorted.
func EncodeParams(params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return q.Encode()
}

// PageParams are the list parameters Zoho understands. Zero values are
// omitted so the vendor defaults apply (page 1, 200 per page).
type PageParams struct {
	Page      int
	PerPage   int
	Fields    []string
	SortBy    string
	SortOrder string
	Extra     map[string]string
}

func (p PageParams) Encode() string {
	params := make(map[string]string, len(p.Extra)+5)
	for k, v := range p.Extra {
		params[k] = v
	}
	if p.Page > 0 {
		params["page"] = strconv.Itoa(p.Page)
	}
	if p.PerPage > 0 {
		params["per_page"] = strconv.Itoa(p.PerPage)
	}
	if len(p.Fields) > 0 {
		params["fields"] = strings.Join(p.Fields, ",")
	}
	if p.SortBy != "" {
		params["sort_by"] = p.SortBy
	}
	if p.SortOrder != "" {
		params["sort_order"] = p.SortOrder
	}
	return EncodeParams(params)
}
