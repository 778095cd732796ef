package airtable

import (
	"context"
	"net/http"
)

// Field type tags understood by the metadata API.
const (
	TypeDateTime       = "dateTime"
	TypeNumber         = "number"
	TypeSingleLineText = "singleLineText"
)

// Field is a column definition in a create-table request.
type Field struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Options any    `json:"options,omitempty"`
}

// NumberOptions sets the display precision of a number field.
type NumberOptions struct {
	Precision int `json:"precision"`
}

// DateTimeOptions configures a dateTime field.
type DateTimeOptions struct {
	TimeZone   string       `json:"timeZone"`
	DateFormat FormatOption `json:"dateFormat"`
	TimeFormat FormatOption `json:"timeFormat"`
}

// FormatOption names a date or time display format.
type FormatOption struct {
	Name string `json:"name"`
}

// NumberField returns a number column with the given precision.
func NumberField(name string, precision int) Field {
	return Field{Name: name, Type: TypeNumber, Options: NumberOptions{Precision: precision}}
}

// DateTimeField returns a UTC, ISO-formatted, 24 hour dateTime column.
func DateTimeField(name string) Field {
	return Field{Name: name, Type: TypeDateTime, Options: DateTimeOptions{
		TimeZone:   "utc",
		DateFormat: FormatOption{Name: "iso"},
		TimeFormat: FormatOption{Name: "24hour"},
	}}
}

// TextField returns a single line text column.
func TextField(name string) Field {
	return Field{Name: name, Type: TypeSingleLineText}
}

// Table is a table in the base.
type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

type listTablesResponse struct {
	Tables []Table `json:"tables"`
}

type createTableRequest struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// ListTables returns every table in the base.
func (c *Client) ListTables(ctx context.Context) ([]Table, error) {
	var resp listTablesResponse
	if err := c.do(ctx, "list_tables", http.MethodGet, c.metaTablesPath(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

// CreateTable creates a table. The first field becomes the primary field.
func (c *Client) CreateTable(ctx context.Context, name string, fields []Field) (*Table, error) {
	var table Table
	req := createTableRequest{Name: name, Fields: fields}
	if err := c.do(ctx, "create_table", http.MethodPost, c.metaTablesPath(), nil, req, &table); err != nil {
		return nil, err
	}
	return &table, nil
}
