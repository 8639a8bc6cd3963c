package gateway

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lox/apsmon/internal/models"
)

// The inverter table is identified by this header cell text. Firmware
// variants differ in trailing columns but keep this fixed order:
// id, current power, grid frequency, grid voltage, temperature.
const powerHeader = "Current Power"

const (
	colID    = 0
	colWatts = 1
	colFreq  = 2
	colVolts = 3
	colTemp  = 4
)

var (
	intRe = regexp.MustCompile(`\d+`)
	numRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParseError means the page structure was unrecognizable: no inverter
// table, or a table with no data rows. Individual unreadable cells never
// produce one.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse gateway page: " + e.Reason
}

// Parse extracts panel readings from the gateway page markup. Rows
// without a readable watts value are "not reporting" and are skipped;
// unreadable optional cells become nil fields. Document order is kept.
func Parse(markup string) (models.ReadingSet, error) {
	tables, err := collectTables(markup)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	table := findInverterTable(tables)
	if table == nil {
		return nil, &ParseError{Reason: "no table with '" + powerHeader + "' header found"}
	}
	if len(table) < 2 {
		return nil, &ParseError{Reason: "inverter table has no data rows"}
	}

	var set models.ReadingSet
	for _, row := range table[1:] {
		if len(row) <= colWatts {
			continue
		}
		id := strings.TrimSpace(row[colID])
		watts, ok := parseWatts(row[colWatts])
		if id == "" || !ok {
			logrus.WithField("row", strings.Join(row, "|")).Debug("skipping row without id or watts")
			continue
		}
		r := models.PanelReading{ID: id, Watts: watts}
		r.FreqHz = parseNumber(cell(row, colFreq))
		r.Volts = parseNumber(cell(row, colVolts))
		r.TempC = parseNumber(cell(row, colTemp))
		set = append(set, r)
	}

	logrus.WithFields(logrus.Fields{
		"rows":    len(table) - 1,
		"panels":  len(set),
		"skipped": len(table) - 1 - len(set),
	}).Debug("parsed inverter table")

	return set, nil
}

// parseWatts pulls the first non-negative integer out of a power cell,
// ignoring units and surrounding text ("253 W", "253W ").
func parseWatts(text string) (int, bool) {
	m := intRe.FindString(text)
	if m == "" {
		return 0, false
	}
	w, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return w, true
}

// parseNumber pulls the first integer or decimal out of a cell, or nil
// when the cell is absent or carries no number ("-", "ERR").
func parseNumber(text string) *float64 {
	m := numRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// findInverterTable picks the table whose first row mentions the power
// header.
func findInverterTable(tables [][][]string) [][]string {
	for _, tbl := range tables {
		if len(tbl) == 0 {
			continue
		}
		if strings.Contains(strings.Join(tbl[0], " "), powerHeader) {
			return tbl
		}
	}
	return nil
}

// collectTables flattens every <table> in the document into rows of
// trimmed cell text. The gateway emits messy markup (stray <center>,
// &nbsp;, <sup>o</sup>) so cells are reduced to their text content.
func collectTables(markup string) ([][][]string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var tables [][][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			tables = append(tables, tableRows(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return tables, nil
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			rows = append(rows, rowCells(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return rows
}

func rowCells(tr *html.Node) []string {
	var cells []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) {
			cells = append(cells, cellText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return cells
}

// cellText gathers a cell's text nodes, mapping &nbsp; to a plain space
// and collapsing runs of whitespace.
func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	s := strings.ReplaceAll(b.String(), "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
