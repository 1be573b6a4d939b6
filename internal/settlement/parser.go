// Package settlement parses the Big5-encoded fixed-width clearing file
// §4.10/§6 describes and computes net settlement positions per
// counterparty bank.
package settlement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RecordType distinguishes the three line kinds a settlement file
// carries.
type RecordType byte

const (
	RecordHeader  RecordType = 'H'
	RecordDetail  RecordType = 'D'
	RecordTrailer RecordType = 'T'
)

// Header is the file-level header record.
type Header struct {
	FileID        string
	Version       string
	CreationDate  string // YYYYMMDD
	InstitutionID string
}

// Detail is one settlement detail record.
type Detail struct {
	Date         string // YYYYMMDD
	TxRef        string
	STAN         string
	RRN          string
	TxType       string
	AcquirerBank string
	IssuerBank   string
	PAN          string
	Amount       decimal.Decimal
	Currency     string
	Fee          decimal.Decimal
	Terminal     string
	Merchant     string
	AuthCode     string
	ResponseCode string
	ReversalFlag bool
	OriginalRef  string
	Channel      string
}

// Trailer is the file-level trailer record.
type Trailer struct {
	RecordCount  int
	TotalAmount  decimal.Decimal
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
	DebitCount   int
	CreditCount  int
	Checksum     string
}

// File is a fully parsed settlement file.
type File struct {
	Header  Header
	Details []Detail
	Trailer Trailer
}

// field widths for the detail record, in column order per §6.
var detailWidths = []int{8, 12, 6, 12, 4, 7, 7, 16, 12, 3, 12, 8, 15, 6, 2, 1, 12, 6}

// ParseBig5File decodes raw as Big5 and parses the resulting
// fixed-width lines into a File. Lines are split on '\n'; a trailing
// '\r' is trimmed for CRLF-terminated files.
func ParseBig5File(raw []byte) (*File, error) {
	text, err := decodeBig5(raw)
	if err != nil {
		return nil, fmt.Errorf("settlement: big5 decode: %w", err)
	}
	return parseLines(strings.Split(text, "\n"))
}

func parseLines(lines []string) (*File, error) {
	var f File
	var sawHeader, sawTrailer bool

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			continue
		}
		switch RecordType(line[0]) {
		case RecordHeader:
			h, err := parseHeader(line)
			if err != nil {
				return nil, fmt.Errorf("settlement: line %d: %w", i+1, err)
			}
			f.Header = h
			sawHeader = true
		case RecordDetail:
			d, err := parseDetail(line)
			if err != nil {
				return nil, fmt.Errorf("settlement: line %d: %w", i+1, err)
			}
			f.Details = append(f.Details, d)
		case RecordTrailer:
			tr, err := parseTrailer(line)
			if err != nil {
				return nil, fmt.Errorf("settlement: line %d: %w", i+1, err)
			}
			f.Trailer = tr
			sawTrailer = true
		default:
			return nil, fmt.Errorf("settlement: line %d: unknown record type %q", i+1, line[0])
		}
	}

	if !sawHeader {
		return nil, fmt.Errorf("settlement: missing header record")
	}
	if !sawTrailer {
		return nil, fmt.Errorf("settlement: missing trailer record")
	}
	if f.Trailer.RecordCount != len(f.Details) {
		return nil, fmt.Errorf("settlement: trailer record count %d does not match %d detail records", f.Trailer.RecordCount, len(f.Details))
	}
	return &f, nil
}

func parseHeader(line string) (Header, error) {
	fields, err := splitFixed(line[1:], []int{8, 3, 8, 8})
	if err != nil {
		return Header{}, err
	}
	return Header{
		FileID:        fields[0],
		Version:       fields[1],
		CreationDate:  fields[2],
		InstitutionID: fields[3],
	}, nil
}

func parseDetail(line string) (Detail, error) {
	fields, err := splitFixed(line[1:], detailWidths)
	if err != nil {
		return Detail{}, err
	}

	amount, err := amountField(fields[8])
	if err != nil {
		return Detail{}, fmt.Errorf("amount: %w", err)
	}
	fee, err := amountField(fields[10])
	if err != nil {
		return Detail{}, fmt.Errorf("fee: %w", err)
	}

	return Detail{
		Date:         fields[0],
		TxRef:        fields[1],
		STAN:         fields[2],
		RRN:          fields[3],
		TxType:       fields[4],
		AcquirerBank: fields[5],
		IssuerBank:   fields[6],
		PAN:          fields[7],
		Amount:       amount,
		Currency:     fields[9],
		Fee:          fee,
		Terminal:     fields[11],
		Merchant:     fields[12],
		AuthCode:     fields[13],
		ResponseCode: fields[14],
		ReversalFlag: fields[15] == "Y",
		OriginalRef:  fields[16],
		Channel:      fields[17],
	}, nil
}

func parseTrailer(line string) (Trailer, error) {
	fields, err := splitFixed(line[1:], []int{8, 16, 16, 16, 8, 8, 40})
	if err != nil {
		return Trailer{}, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Trailer{}, fmt.Errorf("record count: %w", err)
	}
	total, err := amountField(fields[1])
	if err != nil {
		return Trailer{}, fmt.Errorf("total amount: %w", err)
	}
	debit, err := amountField(fields[2])
	if err != nil {
		return Trailer{}, fmt.Errorf("debit amount: %w", err)
	}
	credit, err := amountField(fields[3])
	if err != nil {
		return Trailer{}, fmt.Errorf("credit amount: %w", err)
	}
	debitCount, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return Trailer{}, fmt.Errorf("debit count: %w", err)
	}
	creditCount, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return Trailer{}, fmt.Errorf("credit count: %w", err)
	}

	return Trailer{
		RecordCount:  count,
		TotalAmount:  total,
		DebitAmount:  debit,
		CreditAmount: credit,
		DebitCount:   debitCount,
		CreditCount:  creditCount,
		Checksum:     strings.TrimSpace(fields[6]),
	}, nil
}

func splitFixed(line string, widths []int) ([]string, error) {
	total := 0
	for _, w := range widths {
		total += w
	}
	if len(line) < total {
		return nil, fmt.Errorf("line too short: want >= %d chars, got %d", total, len(line))
	}
	out := make([]string, len(widths))
	pos := 0
	for i, w := range widths {
		out[i] = strings.TrimSpace(line[pos : pos+w])
		pos += w
	}
	return out, nil
}

// amountField parses a fixed-point amount field whose last two digits
// are cents (e.g. "000000010000" -> 100.00).
func amountField(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	n, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return n.Shift(-2), nil
}
