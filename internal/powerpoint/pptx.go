package powerpoint

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"text/template"
)

// EMUPerPoint converts points to English Metric Units.
const EMUPerPoint = 12700

const (
	nsA   = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR   = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP   = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	relNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

func emu(pt float64) int64 {
	return int64(math.Round(pt * EMUPerPoint))
}

func escape(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

var funcs = template.FuncMap{
	"emu":    emu,
	"escape": escape,
	"add":    func(a, b int) int { return a + b },
	"seq":    func(n int) []int { return make([]int, n) },
}

var parts = template.Must(template.New("pptx").Funcs(funcs).Parse(`
{{- define "content_types" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>
<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>
<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>
{{- range $i, $s := .Slides}}
<Override PartName="/ppt/slides/slide{{add $i 1}}.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>
{{- end}}
</Types>
{{- end -}}

{{- define "root_rels" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relNS + `/officeDocument" Target="ppt/presentation.xml"/>
</Relationships>
{{- end -}}

{{- define "presentation" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation ` + nsA + ` ` + nsR + ` ` + nsP + ` saveSubsetFonts="1">
<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
<p:sldIdLst>
{{- range $i, $s := .Slides}}<p:sldId id="{{add $i 256}}" r:id="rId{{add $i 3}}"/>{{end -}}
</p:sldIdLst>
<p:sldSz cx="{{emu .Width}}" cy="{{emu .Height}}"/>
<p:notesSz cx="6858000" cy="9144000"/>
</p:presentation>
{{- end -}}

{{- define "presentation_rels" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relNS + `/slideMaster" Target="slideMasters/slideMaster1.xml"/>
<Relationship Id="rId2" Type="` + relNS + `/theme" Target="theme/theme1.xml"/>
{{- range $i, $s := .Slides}}
<Relationship Id="rId{{add $i 3}}" Type="` + relNS + `/slide" Target="slides/slide{{add $i 1}}.xml"/>
{{- end}}
</Relationships>
{{- end -}}

{{- define "group" -}}
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>
{{- end -}}

{{- define "master" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldMaster ` + nsA + ` ` + nsR + ` ` + nsP + `>
<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>{{template "group"}}</p:spTree></p:cSld>
<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>
<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>
</p:sldMaster>
{{- end -}}

{{- define "master_rels" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relNS + `/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
<Relationship Id="rId2" Type="` + relNS + `/theme" Target="../theme/theme1.xml"/>
</Relationships>
{{- end -}}

{{- define "layout" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldLayout ` + nsA + ` ` + nsR + ` ` + nsP + ` type="blank" preserve="1">
<p:cSld name="Blank"><p:spTree>{{template "group"}}</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sldLayout>
{{- end -}}

{{- define "layout_rels" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relNS + `/slideMaster" Target="../slideMasters/slideMaster1.xml"/>
</Relationships>
{{- end -}}

{{- define "theme" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<a:theme ` + nsA + ` name="Office Theme"><a:themeElements>
<a:clrScheme name="Office">
<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>
<a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>
<a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>
<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>
<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>
<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink>
</a:clrScheme>
<a:fontScheme name="Office">
<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>
<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>
</a:fontScheme>
<a:fmtScheme name="Office">
<a:fillStyleLst>{{range 3 | seq}}<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>{{end}}</a:fillStyleLst>
<a:lnStyleLst>{{range 3 | seq}}<a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>{{end}}</a:lnStyleLst>
<a:effectStyleLst>{{range 3 | seq}}<a:effectStyle><a:effectLst/></a:effectStyle>{{end}}</a:effectStyleLst>
<a:bgFillStyleLst>{{range 3 | seq}}<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>{{end}}</a:bgFillStyleLst>
</a:fmtScheme>
</a:themeElements></a:theme>
{{- end -}}

{{- define "slide" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld ` + nsA + ` ` + nsR + ` ` + nsP + `>
<p:cSld><p:spTree>{{template "group"}}
{{- range .Shapes}}
<p:sp><p:nvSpPr><p:cNvPr id="{{.ID}}" name="{{escape .Name}}"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
<p:spPr><a:xfrm><a:off x="{{emu .X}}" y="{{emu .Y}}"/><a:ext cx="{{emu .Width}}" cy="{{emu .Height}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>
<p:style><a:lnRef idx="2"><a:schemeClr val="accent1"><a:shade val="50000"/></a:schemeClr></a:lnRef><a:fillRef idx="1"><a:schemeClr val="accent1"/></a:fillRef><a:effectRef idx="0"><a:schemeClr val="accent1"/></a:effectRef><a:fontRef idx="minor"><a:schemeClr val="lt1"/></a:fontRef></p:style>
<p:txBody><a:bodyPr rtlCol="0" anchor="ctr"/><a:lstStyle/><a:p><a:pPr algn="ctr"/>
{{- if .Text}}<a:r><a:rPr lang="en-US" dirty="0"/><a:t>{{escape .Text}}</a:t></a:r>{{end -}}
<a:endParaRPr lang="en-US" dirty="0"/></a:p></p:txBody></p:sp>
{{- end}}
</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sld>
{{- end -}}

{{- define "slide_rels" -}}
<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relNS + `/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
</Relationships>
{{- end -}}
`))

type packageData struct {
	Slides []*Slide
	Width  float64
	Height float64
}

func writePackage(w io.Writer, p *Presentation) error {
	zw := zip.NewWriter(w)
	data := packageData{Slides: p.Slides, Width: SlideWidth, Height: SlideHeight}

	fixed := []struct{ name, tmpl string }{
		{"[Content_Types].xml", "content_types"},
		{"_rels/.rels", "root_rels"},
		{"ppt/presentation.xml", "presentation"},
		{"ppt/_rels/presentation.xml.rels", "presentation_rels"},
		{"ppt/slideMasters/slideMaster1.xml", "master"},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", "master_rels"},
		{"ppt/slideLayouts/slideLayout1.xml", "layout"},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", "layout_rels"},
		{"ppt/theme/theme1.xml", "theme"},
	}
	for _, part := range fixed {
		if err := writePart(zw, part.name, part.tmpl, data); err != nil {
			return err
		}
	}
	for i, slide := range p.Slides {
		n := i + 1
		if err := writePart(zw, fmt.Sprintf("ppt/slides/slide%d.xml", n), "slide", slide); err != nil {
			return err
		}
		if err := writePart(zw, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), "slide_rels", nil); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writePart(zw *zip.Writer, name, tmpl string, data any) error {
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	if err := parts.ExecuteTemplate(f, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
