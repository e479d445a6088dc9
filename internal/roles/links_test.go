package roles

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkMap(links []Link) map[string]string {
	m := make(map[string]string, len(links))
	for _, l := range links {
		m[l.Rel] = l.Href
	}
	return m
}

func TestPaginationLinks(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		limit  int
		total  int
		want   map[string]string
	}{
		{
			name:   "first page of several",
			offset: 0,
			limit:  10,
			total:  35,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=0",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=30",
				"next":  "/roles/history?limit=10&offset=10",
			},
		},
		{
			name:   "middle page has next and prev",
			offset: 10,
			limit:  10,
			total:  35,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=10",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=30",
				"next":  "/roles/history?limit=10&offset=20",
				"prev":  "/roles/history?limit=10&offset=0",
			},
		},
		{
			name:   "last page has no next",
			offset: 30,
			limit:  10,
			total:  35,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=30",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=30",
				"prev":  "/roles/history?limit=10&offset=20",
			},
		},
		{
			name:   "total an exact multiple of limit",
			offset: 0,
			limit:  10,
			total:  20,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=0",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=10",
				"next":  "/roles/history?limit=10&offset=10",
			},
		},
		{
			name:   "misaligned offset clamps prev to zero",
			offset: 3,
			limit:  10,
			total:  35,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=3",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=30",
				"next":  "/roles/history?limit=10&offset=13",
				"prev":  "/roles/history?limit=10&offset=0",
			},
		},
		{
			name:   "empty collection",
			offset: 0,
			limit:  10,
			total:  0,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=0",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=0",
			},
		},
		{
			name:   "single page",
			offset: 0,
			limit:  10,
			total:  4,
			want: map[string]string{
				"self":  "/roles/history?limit=10&offset=0",
				"first": "/roles/history?limit=10&offset=0",
				"last":  "/roles/history?limit=10&offset=0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := PaginationLinks("/roles/history", url.Values{}, tt.offset, tt.limit, tt.total)

			got := linkMap(links)
			require.Len(t, got, len(tt.want), "rel set mismatch: %v", got)
			for rel, href := range tt.want {
				assert.Equal(t, href, got[rel], "rel %s", rel)
			}
		})
	}
}

func TestPaginationLinks_PreservesExtraQueryParams(t *testing.T) {
	query := url.Values{}
	query.Set("offset", "999")
	query.Set("limit", "999")
	query.Set("user_id", "abc")

	links := PaginationLinks("/roles/history", query, 10, 10, 30)

	got := linkMap(links)
	// Incoming offset/limit are replaced, everything else is kept.
	assert.Equal(t, "/roles/history?limit=10&offset=10&user_id=abc", got["self"])
	assert.Equal(t, "/roles/history?limit=10&offset=0&user_id=abc", got["first"])
	assert.Equal(t, "/roles/history?limit=10&offset=20&user_id=abc", got["last"])
}
