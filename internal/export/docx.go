package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

const (
	nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	// A4 portrait with 1 inch margins, in twips.
	pageWidth  = 11906
	pageHeight = 16838
	pageMargin = 1440
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:docDefaults>
    <w:rPrDefault><w:rPr><w:rFonts w:ascii="Malgun Gothic" w:hAnsi="Malgun Gothic" w:eastAsia="Malgun Gothic"/><w:sz w:val="22"/><w:szCs w:val="22"/><w:lang w:eastAsia="ko-KR"/></w:rPr></w:rPrDefault>
  </w:docDefaults>
  <w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
  <w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/><w:szCs w:val="32"/></w:rPr></w:style>
  <w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/><w:szCs w:val="26"/></w:rPr></w:style>
</w:styles>`

// --- WordprocessingML model (document.xml only) ---
type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	XmlnsW  string   `xml:"xmlns:w,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wP     `xml:"w:p"`
	SectPr     *wSectPr `xml:"w:sectPr"`
}

type wP struct {
	PPr  *wPPr `xml:"w:pPr"`
	Runs []wR  `xml:"w:r"`
}

type wPPr struct {
	PStyle          *wVal     `xml:"w:pStyle"`
	PageBreakBefore *struct{} `xml:"w:pageBreakBefore"`
	Spacing         *wSpacing `xml:"w:spacing"`
	Jc              *wVal     `xml:"w:jc"`
	SectPr          *wSectPr  `xml:"w:sectPr"`
}

type wSpacing struct {
	Before string `xml:"w:before,attr,omitempty"`
	After  string `xml:"w:after,attr,omitempty"`
}

type wR struct {
	RPr *wRPr `xml:"w:rPr"`
	T   wText `xml:"w:t"`
}

type wRPr struct {
	B    *struct{} `xml:"w:b"`
	Sz   *wVal     `xml:"w:sz"`
	SzCs *wVal     `xml:"w:szCs"`
}

type wText struct {
	Space string `xml:"xml:space,attr"`
	Text  string `xml:",chardata"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wSectPr struct {
	Type  wVal   `xml:"w:type"`
	PgSz  wPgSz  `xml:"w:pgSz"`
	PgMar wPgMar `xml:"w:pgMar"`
	Cols  wCols  `xml:"w:cols"`
}

type wPgSz struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type wPgMar struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
	Header int `xml:"w:header,attr"`
	Footer int `xml:"w:footer,attr"`
	Gutter int `xml:"w:gutter,attr"`
}

type wCols struct {
	Num   int `xml:"w:num,attr"`
	Space int `xml:"w:space,attr"`
}

// DOCX renders problems as a Word worksheet.
func DOCX(problems []problem.Problem) ([]byte, error) {
	if len(problems) == 0 {
		return nil, ErrNoProblems
	}
	var buf bytes.Buffer
	if err := WriteDOCX(&buf, Layout(problems)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDOCX writes doc as an OOXML package.
func WriteDOCX(w io.Writer, doc Document) error {
	body, err := documentXML(doc)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/document.xml", body},
	}
	for _, part := range parts {
		pw, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := pw.Write(part.data); err != nil {
			return fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close docx: %w", err)
	}
	return nil
}

func documentXML(doc Document) ([]byte, error) {
	out := wDocument{XmlnsW: nsW}

	for i, sec := range doc.Sections {
		props := sectPr(sec)
		last := i == len(doc.Sections)-1

		for j, p := range sec.Paragraphs {
			wp := paragraphXML(p)
			// A non-final section ends with a paragraph carrying its properties.
			if !last && j == len(sec.Paragraphs)-1 {
				if wp.PPr == nil {
					wp.PPr = &wPPr{}
				}
				wp.PPr.SectPr = props
			}
			out.Body.Paragraphs = append(out.Body.Paragraphs, wp)
		}
		if !last && len(sec.Paragraphs) == 0 {
			out.Body.Paragraphs = append(out.Body.Paragraphs, wP{PPr: &wPPr{SectPr: props}})
		}
		if last {
			out.Body.SectPr = props
		}
	}

	b, err := xml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}

func sectPr(sec Section) *wSectPr {
	cols := sec.Columns
	if cols < 1 {
		cols = 1
	}
	space := sec.ColumnSpace
	if space == 0 {
		space = 720
	}
	return &wSectPr{
		Type:  wVal{Val: "continuous"},
		PgSz:  wPgSz{W: pageWidth, H: pageHeight},
		PgMar: wPgMar{Top: pageMargin, Right: pageMargin, Bottom: pageMargin, Left: pageMargin, Header: 720, Footer: 720},
		Cols:  wCols{Num: cols, Space: space},
	}
}

func paragraphXML(p Paragraph) wP {
	var ppr wPPr
	set := false
	if p.Style != StyleNormal {
		ppr.PStyle = &wVal{Val: p.Style}
		set = true
	}
	if p.PageBreakBefore {
		ppr.PageBreakBefore = &struct{}{}
		set = true
	}
	if p.SpacingBefore > 0 || p.SpacingAfter > 0 {
		ppr.Spacing = &wSpacing{}
		if p.SpacingBefore > 0 {
			ppr.Spacing.Before = strconv.Itoa(p.SpacingBefore)
		}
		if p.SpacingAfter > 0 {
			ppr.Spacing.After = strconv.Itoa(p.SpacingAfter)
		}
		set = true
	}
	if p.Center {
		ppr.Jc = &wVal{Val: "center"}
		set = true
	}

	wp := wP{}
	if set {
		wp.PPr = &ppr
	}
	for _, r := range p.Runs {
		wr := wR{T: wText{Space: "preserve", Text: r.Text}}
		if r.Bold || r.Size > 0 {
			wr.RPr = &wRPr{}
			if r.Bold {
				wr.RPr.B = &struct{}{}
			}
			if r.Size > 0 {
				size := strconv.Itoa(r.Size)
				wr.RPr.Sz = &wVal{Val: size}
				wr.RPr.SzCs = &wVal{Val: size}
			}
		}
		wp.Runs = append(wp.Runs, wr)
	}
	return wp
}
