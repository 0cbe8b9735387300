package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rileyhilliard/pstop/internal/errors"
)

// ColumnList is the compressed tabular form of the process list: CTab names
// the columns in order and every entry of List holds one value per column.
type ColumnList struct {
	CTab []string            `json:"ctab"`
	List [][]json.RawMessage `json:"list"`
}

// ProcessColumns is the column order the agent emits.
var ProcessColumns = []string{
	"pid", "ppid", "name", "state", "user",
	"utime", "stime", "vss", "rss", "nice", "nthreads",
}

// Row is one decompressed entry. Field order follows the ctab it came from.
type Row struct {
	names  []string
	values []json.RawMessage
}

// Len returns the number of fields in the row.
func (r Row) Len() int { return len(r.names) }

// Name returns the i'th field name.
func (r Row) Name(i int) string { return r.names[i] }

// Value returns the i'th raw field value.
func (r Row) Value(i int) json.RawMessage { return r.values[i] }

// Get returns the raw value for a column, or false if the row has no such column.
func (r Row) Get(name string) (json.RawMessage, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Uncompress zips CTab against every positional entry of List. An entry
// whose length differs from CTab is a protocol error, as is a ctab that
// names a column twice.
func Uncompress(l ColumnList) ([]Row, error) {
	seen := make(map[string]bool, len(l.CTab))
	for _, name := range l.CTab {
		if seen[name] {
			return nil, errors.Newf(errors.ErrProtocol, "ctab names column %q twice", name)
		}
		seen[name] = true
	}

	rows := make([]Row, 0, len(l.List))
	for i, values := range l.List {
		if len(values) != len(l.CTab) {
			return nil, errors.Newf(errors.ErrProtocol,
				"ps entry %d has %d values for %d ctab columns", i, len(values), len(l.CTab))
		}
		rows = append(rows, Row{names: l.CTab, values: values})
	}
	return rows, nil
}

// Compress encodes processes into the columnar form using ProcessColumns.
func Compress(procs []Process) (ColumnList, error) {
	l := ColumnList{
		CTab: ProcessColumns,
		List: make([][]json.RawMessage, 0, len(procs)),
	}
	for _, p := range procs {
		fields := []interface{}{
			p.PID, p.PPID, p.Name, p.State, p.User,
			p.UTime, p.STime, p.VSS, p.RSS, p.Nice, p.Threads,
		}
		values := make([]json.RawMessage, len(fields))
		for i, f := range fields {
			b, err := json.Marshal(f)
			if err != nil {
				return ColumnList{}, fmt.Errorf("encode %s of pid %d: %w", ProcessColumns[i], p.PID, err)
			}
			values[i] = b
		}
		l.List = append(l.List, values)
	}
	return l, nil
}

// processSetters decode one known column into a Process. Columns not listed
// here are ignored so newer agents can add fields.
var processSetters = map[string]func(p *Process, raw json.RawMessage) error{
	"pid":      func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.PID) },
	"ppid":     func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.PPID) },
	"name":     func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.Name) },
	"state":    func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.State) },
	"user":     func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.User) },
	"utime":    func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.UTime) },
	"stime":    func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.STime) },
	"vss":      func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.VSS) },
	"rss":      func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.RSS) },
	"nice":     func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.Nice) },
	"nthreads": func(p *Process, raw json.RawMessage) error { return decodeValue(raw, &p.Threads) },
}

// Processes decompresses l and decodes every row into a Process. The ctab
// must contain "pid"; a missing or null ppid means the process is a root.
func Processes(l ColumnList) ([]Process, error) {
	hasPID := false
	for _, name := range l.CTab {
		if name == "pid" {
			hasPID = true
			break
		}
	}
	if !hasPID && len(l.List) > 0 {
		return nil, errors.New(errors.ErrProtocol, "ps ctab has no pid column", "")
	}

	rows, err := Uncompress(l)
	if err != nil {
		return nil, err
	}

	procs := make([]Process, 0, len(rows))
	for i, row := range rows {
		var p Process
		for j := 0; j < row.Len(); j++ {
			set, ok := processSetters[row.Name(j)]
			if !ok {
				continue
			}
			if err := set(&p, row.Value(j)); err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrProtocol,
					fmt.Sprintf("ps entry %d: bad %s value %s", i, row.Name(j), row.Value(j)), "")
			}
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// decodeValue unmarshals raw into v. JSON null leaves v untouched.
func decodeValue(raw json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// Decode reads one JSON document from r into v, reporting malformed input
// as a protocol error.
func Decode(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.WrapWithCode(err, errors.ErrProtocol,
			"Agent sent a response that isn't valid snapshot JSON",
			"Check that the agent and dashboard versions match")
	}
	return nil
}
