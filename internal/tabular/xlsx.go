package tabular

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	qerrors "github.com/hpungsan/quire/internal/errors"
)

// Workbook is an XLSX package opened for row rewriting. Only the first
// worksheet's sheetData is decoded; every other part is written back as-is.
type Workbook struct {
	// Document holds the first worksheet. Row 1 is the header.
	Document Document

	// SheetName is the workbook name of the decoded worksheet.
	SheetName string

	files     []*zip.File
	sheetPath string
	sheetXML  []byte
	dataSpan  [2]int
	prefix    string
	headerRow Row
}

type xWorkbook struct {
	Sheets []xWorkbookSheet `xml:"sheets>sheet"`
}

type xWorkbookSheet struct {
	Name string `xml:"name,attr"`
	ID   string `xml:"id,attr"`
}

type xRelationships struct {
	Relationships []xRelationship `xml:"Relationship"`
}

type xRelationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
}

type xSharedStrings struct {
	Strings []xRichText `xml:"si"`
}

type xRichText struct {
	T []string `xml:"t"`
	R []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (rt xRichText) text() string {
	if len(rt.R) > 0 {
		var b strings.Builder
		for _, run := range rt.R {
			b.WriteString(run.T)
		}
		return b.String()
	}
	return strings.Join(rt.T, "")
}

type xSheetData struct {
	Rows []xRow `xml:"row"`
}

type xRow struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Cells []xCell    `xml:"c"`
}

type xCell struct {
	Attrs  []xml.Attr `xml:",any,attr"`
	Inner  string     `xml:",innerxml"`
	V      string     `xml:"v"`
	Inline xRichText  `xml:"is"`
}

var (
	sheetDataRe  = regexp.MustCompile(`(?s)<((?:[A-Za-z_][\w.-]*:)?)sheetData\b[^>]*?(?:/>|>.*?</(?:[A-Za-z_][\w.-]*:)?sheetData\s*>)`)
	dimensionRe  = regexp.MustCompile(`<((?:[A-Za-z_][\w.-]*:)?)dimension\b[^>]*/>`)
	calcChainRe  = regexp.MustCompile(`<(?:[A-Za-z_][\w.-]*:)?(?:Override|Relationship)\b[^>]*calcChain[^>]*/>`)
	calcChainDoc = "xl/calcChain.xml"
)

// ReadXLSX opens an XLSX package and decodes its first worksheet.
func ReadXLSX(data []byte) (*Workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, qerrors.NewFormat("not an XLSX package", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var wb xWorkbook
	if err := readXMLPart(files, "xl/workbook.xml", &wb); err != nil {
		return nil, err
	}
	if len(wb.Sheets) == 0 {
		return nil, qerrors.NewFormat("workbook has no worksheets", nil)
	}

	var rels xRelationships
	if err := readXMLPart(files, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return nil, err
	}
	var target string
	for _, rel := range rels.Relationships {
		if rel.ID == wb.Sheets[0].ID {
			target = rel.Target
			break
		}
	}
	if target == "" {
		return nil, qerrors.NewFormat("first worksheet has no relationship target", nil)
	}
	sheetPath := normalizeTargetPath(target)

	var sst xSharedStrings
	if _, ok := files["xl/sharedStrings.xml"]; ok {
		if err := readXMLPart(files, "xl/sharedStrings.xml", &sst); err != nil {
			return nil, err
		}
	}
	shared := make([]string, len(sst.Strings))
	for i, s := range sst.Strings {
		shared[i] = s.text()
	}

	sheetFile, ok := files[sheetPath]
	if !ok {
		return nil, qerrors.NewFormat(fmt.Sprintf("worksheet %s missing from package", sheetPath), nil)
	}
	sheetXML, err := readZipFile(sheetFile)
	if err != nil {
		return nil, err
	}

	loc := sheetDataRe.FindSubmatchIndex(sheetXML)
	if loc == nil {
		return nil, qerrors.NewFormat("worksheet has no sheetData", nil)
	}
	prefix := string(sheetXML[loc[2]:loc[3]])

	var sd xSheetData
	if err := xml.Unmarshal(sheetXML[loc[0]:loc[1]], &sd); err != nil {
		return nil, qerrors.NewFormat("failed to parse worksheet", err)
	}

	out := &Workbook{
		SheetName: wb.Sheets[0].Name,
		files:     zr.File,
		sheetPath: sheetPath,
		sheetXML:  sheetXML,
		dataSpan:  [2]int{loc[0], loc[1]},
		prefix:    prefix,
	}
	if err := out.decodeRows(sd, shared); err != nil {
		return nil, err
	}
	return out, nil
}

// Sheet limits of the XLSX format (column XFD, row 1048576).
const (
	MaxColumns = 16384
	MaxRows    = 1048576
)

// decodeRows fills Document and headerRow from the parsed sheetData. Row
// numbers or cell references beyond the sheet limits are FORMAT errors.
func (wb *Workbook) decodeRows(sd xSheetData, shared []string) error {
	type placedCell struct {
		col  int
		cell Cell
	}
	type placedRow struct {
		style Style
		cells []placedCell
	}

	byNum := make(map[int]*placedRow)
	maxRow, maxCol := 0, 0
	for _, xr := range sd.Rows {
		rowAttrs := attrMap(xr.Attrs)
		num, err := strconv.Atoi(rowAttrs["r"])
		if err != nil || num < 1 {
			num = maxRow + 1
		}
		if num > MaxRows {
			return qerrors.NewFormat(fmt.Sprintf("row %s is beyond the sheet limit of %d rows", rowAttrs["r"], MaxRows), nil)
		}
		delete(rowAttrs, "r")

		pr := &placedRow{style: styleOf(rowAttrs)}
		col := 0
		for _, xc := range xr.Cells {
			cellAttrs := attrMap(xc.Attrs)
			ref := cellAttrs["r"]
			if c := columnIndex(ref); c > 0 {
				col = c
			} else if c < 0 {
				return qerrors.NewFormat(fmt.Sprintf("cell %q is beyond column %s", ref, ColumnName(MaxColumns)), nil)
			} else {
				col++
			}
			if col > MaxColumns {
				return qerrors.NewFormat(fmt.Sprintf("row %d has more than %d columns", num, MaxColumns), nil)
			}
			delete(cellAttrs, "r")
			pr.cells = append(pr.cells, placedCell{col: col, cell: decodeCell(xc, cellAttrs, shared)})
			maxCol = max(maxCol, col)
		}
		byNum[num] = pr
		maxRow = max(maxRow, num)
	}

	build := func(num int) Row {
		r := Row{Cells: make([]Cell, maxCol)}
		if pr, ok := byNum[num]; ok {
			r.Style = pr.style
			for _, pc := range pr.cells {
				r.Cells[pc.col-1] = pc.cell
			}
		}
		return r
	}

	wb.headerRow = build(1)
	header := make([]string, maxCol)
	for i, c := range wb.headerRow.Cells {
		header[i] = c.Value
	}

	rows := make([]Row, 0, max(maxRow-1, 0))
	for num := 2; num <= maxRow; num++ {
		rows = append(rows, build(num))
	}
	wb.Document = Document{Header: header, Rows: rows}
	return nil
}

func decodeCell(xc xCell, attrs map[string]string, shared []string) Cell {
	c := Cell{Style: styleOf(attrs), Raw: strings.TrimSpace(xc.Inner)}
	v := strings.TrimSpace(xc.V)

	switch attrs["t"] {
	case "s":
		if idx, err := strconv.Atoi(v); err == nil && idx >= 0 && idx < len(shared) {
			c.Value, c.Kind = shared[idx], KindString
		}
	case "inlineStr":
		c.Value, c.Kind = xc.Inline.text(), KindString
	case "b":
		c.Kind = KindBool
		c.Value = "FALSE"
		if v == "1" {
			c.Value = "TRUE"
		}
	case "str", "e", "d":
		c.Value, c.Kind = v, KindString
	default:
		if v != "" {
			c.Value, c.Kind = v, KindNumber
		}
	}
	if c.Kind == KindString && c.Value == "" {
		c.Kind = KindEmpty
	}
	return c
}

// WriteXLSX writes wb's package with the first worksheet's rows replaced by
// doc. The header row, styles, shared strings and every other part are kept.
func WriteXLSX(w io.Writer, wb *Workbook, doc Document) error {
	if wb == nil {
		return qerrors.NewInvalidRequest("nil workbook")
	}

	sheet := wb.renderSheet(doc)

	zw := zip.NewWriter(w)
	for _, f := range wb.files {
		switch f.Name {
		case calcChainDoc:
			// Formula cells moved; Excel rebuilds the chain on open.
			continue
		case wb.sheetPath:
			if err := writeEntry(zw, f, sheet); err != nil {
				return err
			}
		case "[Content_Types].xml", "xl/_rels/workbook.xml.rels":
			data, err := readZipFile(f)
			if err != nil {
				return err
			}
			if err := writeEntry(zw, f, calcChainRe.ReplaceAll(data, nil)); err != nil {
				return err
			}
		default:
			if err := zw.Copy(f); err != nil {
				return qerrors.NewResource("failed to copy "+f.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return qerrors.NewResource("failed to finish XLSX package", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, src *zip.File, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     src.Name,
		Method:   zip.Deflate,
		Modified: src.Modified,
	})
	if err != nil {
		return qerrors.NewResource("failed to write "+src.Name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return qerrors.NewResource("failed to write "+src.Name, err)
	}
	return nil
}

// renderSheet returns the worksheet XML with sheetData regenerated.
func (wb *Workbook) renderSheet(doc Document) []byte {
	width := max(len(doc.Header), 1)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<%ssheetData>", wb.prefix)
	wb.writeRow(&b, 1, wb.headerRow)
	for i, r := range doc.Rows {
		wb.writeRow(&b, i+2, r)
	}
	fmt.Fprintf(&b, "</%ssheetData>", wb.prefix)

	var out bytes.Buffer
	out.Write(wb.sheetXML[:wb.dataSpan[0]])
	out.Write(b.Bytes())
	out.Write(wb.sheetXML[wb.dataSpan[1]:])

	ref := "A1:" + ColumnName(width) + strconv.Itoa(len(doc.Rows)+1)
	return dimensionRe.ReplaceAllFunc(out.Bytes(), func(m []byte) []byte {
		p := dimensionRe.FindSubmatch(m)[1]
		return []byte(fmt.Sprintf(`<%sdimension ref="%s"/>`, p, ref))
	})
}

func (wb *Workbook) writeRow(b *bytes.Buffer, num int, r Row) {
	var cells bytes.Buffer
	for i, c := range r.Cells {
		wb.writeCell(&cells, ColumnName(i+1)+strconv.Itoa(num), c)
	}
	if cells.Len() == 0 && len(r.Style.Attrs) == 0 {
		return
	}
	fmt.Fprintf(b, `<%srow r="%d"`, wb.prefix, num)
	writeAttrs(b, r.Style.Attrs)
	if cells.Len() == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	b.Write(cells.Bytes())
	fmt.Fprintf(b, "</%srow>", wb.prefix)
}

func (wb *Workbook) writeCell(b *bytes.Buffer, ref string, c Cell) {
	if c.Raw == "" && c.Kind == KindEmpty && len(c.Style.Attrs) == 0 {
		return
	}

	attrs := c.Style.Attrs
	var body string
	switch {
	case c.Raw != "":
		body = c.Raw
	case c.Kind == KindNumber:
		attrs = withType(attrs, "")
		body = fmt.Sprintf("<%sv>%s</%sv>", wb.prefix, escape(c.Value), wb.prefix)
	case c.Kind == KindBool:
		attrs = withType(attrs, "b")
		v := "0"
		if strings.EqualFold(c.Value, "true") || c.Value == "1" {
			v = "1"
		}
		body = fmt.Sprintf("<%sv>%s</%sv>", wb.prefix, v, wb.prefix)
	case c.Kind == KindString:
		attrs = withType(attrs, "inlineStr")
		body = fmt.Sprintf(`<%sis><%st xml:space="preserve">%s</%st></%sis>`,
			wb.prefix, wb.prefix, escape(c.Value), wb.prefix, wb.prefix)
	default:
		attrs = withType(attrs, "")
	}

	fmt.Fprintf(b, `<%sc r="%s"`, wb.prefix, ref)
	writeAttrs(b, attrs)
	if body == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	b.WriteString(body)
	fmt.Fprintf(b, "</%sc>", wb.prefix)
}

func withType(attrs map[string]string, t string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	if t == "" {
		delete(out, "t")
	} else {
		out["t"] = t
	}
	return out
}

func writeAttrs(b *bytes.Buffer, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, ` %s="%s"`, k, escape(attrs[k]))
	}
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		name := a.Name.Local
		switch a.Name.Space {
		case "":
		case "http://www.w3.org/XML/1998/namespace":
			name = "xml:" + name
		default:
			name = a.Name.Space + ":" + name
		}
		m[name] = a.Value
	}
	return m
}

func styleOf(attrs map[string]string) Style {
	if len(attrs) == 0 {
		return Style{}
	}
	return Style{Attrs: attrs}
}

func readXMLPart(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return qerrors.NewFormat(fmt.Sprintf("not an XLSX package: missing %s", name), nil)
	}
	data, err := readZipFile(f)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return qerrors.NewFormat("failed to parse "+name, err)
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, qerrors.NewFormat("failed to open "+f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, qerrors.NewFormat("failed to read "+f.Name, err)
	}
	return data, nil
}

func normalizeTargetPath(target string) string {
	p := strings.TrimPrefix(target, "/")
	if !strings.HasPrefix(p, "xl/") {
		p = path.Join("xl", p)
	}
	return path.Clean(p)
}

// columnIndex converts a cell reference such as "AB12" to its 1-based column.
// It returns 0 when ref has no letters and -1 past MaxColumns.
func columnIndex(ref string) int {
	col := 0
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			col = col*26 + int(ch-'A'+1)
		case ch >= 'a' && ch <= 'z':
			col = col*26 + int(ch-'a'+1)
		default:
			return col
		}
		if col > MaxColumns {
			return -1
		}
	}
	return col
}

// ColumnName converts a 1-based column index to letters (1 → A, 28 → AB).
func ColumnName(n int) string {
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}
