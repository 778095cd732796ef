package airtable

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// MaxRecordsPerRequest is Airtable's limit for create calls.
const MaxRecordsPerRequest = 10

// MaxPageSize is the largest page Airtable returns from a list call.
const MaxPageSize = 100

// Fields is the cell map of one record.
type Fields map[string]any

// Record is a row as returned by Airtable.
type Record struct {
	ID          string `json:"id,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

// ListQuery restricts a record listing.
type ListQuery struct {
	Fields   []string
	PageSize int
	Offset   string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	for _, f := range q.Fields {
		v.Add("fields[]", f)
	}
	if q.PageSize > 0 {
		size := q.PageSize
		if size > MaxPageSize {
			size = MaxPageSize
		}
		v.Set("pageSize", strconv.Itoa(size))
	}
	if q.Offset != "" {
		v.Set("offset", q.Offset)
	}
	return v
}

// RecordPage is one page of a record listing. Offset is empty on the last page.
type RecordPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ListRecords fetches a single page of records from table.
func (c *Client) ListRecords(ctx context.Context, table string, q ListQuery) (*RecordPage, error) {
	var page RecordPage
	if err := c.do(ctx, "list_records", http.MethodGet, c.tablePath(table), q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type createRecordsRequest struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast"`
}

type createRecordsResponse struct {
	Records []Record `json:"records"`
}

// CreateRecords inserts up to MaxRecordsPerRequest rows in one call.
func (c *Client) CreateRecords(ctx context.Context, table string, rows []Fields) ([]Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > MaxRecordsPerRequest {
		return nil, ErrTooManyRecords
	}

	req := createRecordsRequest{Records: make([]Record, len(rows)), Typecast: true}
	for i, f := range rows {
		req.Records[i] = Record{Fields: f}
	}

	var resp createRecordsResponse
	if err := c.do(ctx, "create_records", http.MethodPost, c.tablePath(table), nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}
