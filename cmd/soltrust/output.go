package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type field struct {
	name  string
	value interface{}
}

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatTable, formatJSON:
	default:
		return nil, errors.Errorf("unsupported output format: %s", format)
	}
	return &printer{w: w, format: format}, nil
}

// print writes fields in order, as aligned rows or a single JSON object.
func (p *printer) print(fields ...field) error {
	if p.format == formatJSON {
		obj := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			obj[f.name] = f.value
		}
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(obj)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%v\n", f.name, f.value)
	}
	return tw.Flush()
}

func sortFields(fields []field) {
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].name < fields[j].name
	})
}
