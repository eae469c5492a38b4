package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awygle/udptherbone/etherbone"
)

var errAssignment = errors.New("expected addr=data")

type recordFlags struct {
	writes   []string
	reads    []string
	readFIFO bool
}

func (f *recordFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&f.writes, "write", nil,
		"write data at addr, as addr=data; repeatable")
	flags.StringArrayVar(&f.reads, "read", nil, "read addr; repeatable")
	flags.BoolVar(&f.readFIFO, "read-fifo", false,
		"mark the read record as reading from a FIFO")
}

// records returns one record per write followed by one record holding every
// read.
func (f *recordFlags) records() ([]etherbone.Record, error) {
	var records []etherbone.Record

	for _, w := range f.writes {
		addr, data, err := parseAssignment(w)
		if err != nil {
			return nil, fmt.Errorf("--write %q: %w", w, err)
		}

		records = append(records, etherbone.Record{
			BaseAddr: addr,
			Writes:   []uint64{data},
		})
	}

	if len(f.reads) == 0 {
		return records, nil
	}

	read := etherbone.Record{ReadFIFO: f.readFIFO}
	for _, r := range f.reads {
		addr, err := parseNumber(r)
		if err != nil {
			return nil, fmt.Errorf("--read %q: %w", r, err)
		}

		read.Reads = append(read.Reads, addr)
	}

	return append(records, read), nil
}

// parseNumber accepts decimal, 0x hex, 0o octal, and 0b binary.
func parseNumber(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, 64)
}

func parseAssignment(s string) (addr, data uint64, err error) {
	left, right, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, errAssignment
	}

	addr, err = parseNumber(left)
	if err != nil {
		return 0, 0, err
	}

	data, err = parseNumber(right)
	if err != nil {
		return 0, 0, err
	}

	return addr, data, nil
}

func printResponses(w io.Writer, rsps []etherbone.Response) {
	for i, r := range rsps {
		if r.NoReads {
			fmt.Fprintf(w, "record %d: ack\n", i)
			continue
		}

		for _, res := range r.Results {
			fmt.Fprintf(w, "record %d: read %#x = %#x\n", i, res.Addr, res.Data)
		}
	}
}
