package roles

import (
	"fmt"
	"net/url"
)

// Link is a hypermedia pagination link.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// PaginationLinks computes self/first/last/next/prev links for an offset
// window over a collection of total items. It is a pure function of its
// arguments: basePath is the request path, query holds any extra query
// parameters to preserve (offset and limit are overwritten per link).
func PaginationLinks(basePath string, query url.Values, offset, limit, total int) []Link {
	href := func(offset int) string {
		q := url.Values{}
		for key, values := range query {
			if key == "offset" || key == "limit" {
				continue
			}
			q[key] = values
		}
		q.Set("offset", fmt.Sprintf("%d", offset))
		q.Set("limit", fmt.Sprintf("%d", limit))
		return basePath + "?" + q.Encode()
	}

	links := []Link{
		{Rel: "self", Href: href(offset)},
		{Rel: "first", Href: href(0)},
	}

	lastOffset := 0
	if limit > 0 && total > 0 {
		lastOffset = ((total - 1) / limit) * limit
	}
	links = append(links, Link{Rel: "last", Href: href(lastOffset)})

	if offset+limit < total {
		links = append(links, Link{Rel: "next", Href: href(offset + limit)})
	}

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, Link{Rel: "prev", Href: href(prev)})
	}

	return links
}
