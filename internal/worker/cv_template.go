package worker

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"ezycv/internal/cv"
)

// cvPageTemplate 是 PDF 渲染的 Go HTML 模板。
// 六个内置模板共用一套结构，差异在 accent 颜色与排版类名。
const cvPageTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        :root {
            --accent: {{.Accent}};
        }
        body {
            margin: 0;
            padding: 0;
            font-family: '{{.FontFamily}}', 'Helvetica Neue', Arial, sans-serif;
            font-size: {{.FontSizePt}}pt;
            color: #1f2937;
            background: white;
        }
        .a4-page {
            width: 794px; /* A4 @ 96 DPI */
            min-height: 1122px;
            background: white;
            margin: 0 auto;
            padding: 48px 56px;
            box-sizing: border-box;
        }
        header.identity {
            border-bottom: 3px solid var(--accent);
            padding-bottom: 14px;
            margin-bottom: 18px;
        }
        header.identity h1 {
            margin: 0;
            font-size: 2.1em;
            color: var(--accent);
        }
        header.identity .job-title {
            margin: 2px 0 8px;
            font-size: 1.15em;
            color: #4b5563;
        }
        header.identity .contact {
            font-size: 0.85em;
            color: #6b7280;
        }
        header.identity .contact span + span::before {
            content: "  \00b7  ";
        }
        section {
            margin-bottom: 16px;
        }
        section > h2 {
            font-size: 1.05em;
            text-transform: uppercase;
            letter-spacing: 0.08em;
            color: var(--accent);
            border-bottom: 1px solid #e5e7eb;
            padding-bottom: 3px;
            margin: 0 0 8px;
        }
        .entry {
            margin-bottom: 10px;
        }
        .entry .heading {
            display: flex;
            justify-content: space-between;
            font-weight: 600;
        }
        .entry .sub {
            color: #4b5563;
            font-size: 0.92em;
        }
        .entry .dates {
            color: #6b7280;
            font-size: 0.85em;
            font-weight: 400;
            white-space: nowrap;
        }
        .entry p {
            margin: 4px 0 0;
            white-space: pre-wrap;
        }
        ul.inline-list {
            list-style: none;
            padding: 0;
            margin: 0;
        }
        ul.inline-list li {
            display: inline-block;
            background: #f3f4f6;
            border-radius: 4px;
            padding: 2px 8px;
            margin: 0 6px 6px 0;
            font-size: 0.88em;
        }
        ul.inline-list li .level {
            color: #6b7280;
        }
        .classic header.identity h1, .minimal header.identity h1 {
            color: #111827;
        }
        .classic header.identity, .minimal header.identity {
            border-bottom-width: 1px;
        }
        .elegant body, .elegant .a4-page {
            font-family: Georgia, 'Times New Roman', serif;
        }
    </style>
</head>
<body>
    <div class="a4-page {{.TemplateID}}">
        <header class="identity">
            <h1>{{.Doc.PersonalInfo.FullName}}</h1>
            {{if .Doc.PersonalInfo.JobTitle}}<div class="job-title">{{.Doc.PersonalInfo.JobTitle}}</div>{{end}}
            <div class="contact">
                {{range .Contacts}}<span>{{.}}</span>{{end}}
            </div>
        </header>

        {{if .Doc.Summary}}
        <section>
            <h2>Summary</h2>
            <p>{{.Doc.Summary}}</p>
        </section>
        {{end}}

        {{if .Doc.Experience}}
        <section>
            <h2>Experience</h2>
            {{range .Doc.Experience}}
            <div class="entry">
                <div class="heading">
                    <span>{{.JobTitle}}</span>
                    <span class="dates">{{.StartDate}} - {{if .Current}}Present{{else}}{{.EndDate}}{{end}}</span>
                </div>
                <div class="sub">{{.Company}}{{if .Location}} &middot; {{.Location}}{{end}}</div>
                {{if .Description}}<p>{{.Description}}</p>{{end}}
            </div>
            {{end}}
        </section>
        {{end}}

        {{if .Doc.Education}}
        <section>
            <h2>Education</h2>
            {{range .Doc.Education}}
            <div class="entry">
                <div class="heading">
                    <span>{{.Degree}}</span>
                    <span class="dates">{{.StartDate}} - {{if .Current}}Present{{else}}{{.EndDate}}{{end}}</span>
                </div>
                <div class="sub">{{.Institution}}{{if .Location}} &middot; {{.Location}}{{end}}{{if .Grade}} &middot; {{.Grade}}{{end}}</div>
                {{if .Description}}<p>{{.Description}}</p>{{end}}
            </div>
            {{end}}
        </section>
        {{end}}

        {{if .Doc.Skills}}
        <section>
            <h2>Skills</h2>
            <ul class="inline-list">
                {{range .Doc.Skills}}<li>{{.Name}}{{if .Level}} <span class="level">({{.Level}})</span>{{end}}</li>{{end}}
            </ul>
        </section>
        {{end}}

        {{if .Doc.Languages}}
        <section>
            <h2>Languages</h2>
            <ul class="inline-list">
                {{range .Doc.Languages}}<li>{{.Name}}{{if .Proficiency}} <span class="level">({{.Proficiency}})</span>{{end}}</li>{{end}}
            </ul>
        </section>
        {{end}}

        {{if .Doc.Certifications}}
        <section>
            <h2>Certifications</h2>
            {{range .Doc.Certifications}}
            <div class="entry">
                <div class="heading">
                    <span>{{.Name}}</span>
                    <span class="dates">{{.Date}}</span>
                </div>
                <div class="sub">{{.Issuer}}{{if .CredentialID}} &middot; {{.CredentialID}}{{end}}</div>
            </div>
            {{end}}
        </section>
        {{end}}

        {{if .Doc.Projects}}
        <section>
            <h2>Projects</h2>
            {{range .Doc.Projects}}
            <div class="entry">
                <div class="heading">
                    <span>{{.Title}}</span>
                    <span class="dates">{{.StartDate}}{{if .EndDate}} - {{.EndDate}}{{end}}</span>
                </div>
                {{if .Technologies}}<div class="sub">{{join .Technologies ", "}}</div>{{end}}
                {{if .Description}}<p>{{.Description}}</p>{{end}}
                {{if .Link}}<div class="sub">{{.Link}}</div>{{end}}
            </div>
            {{end}}
        </section>
        {{end}}

        {{if .Doc.References}}
        <section>
            <h2>References</h2>
            {{range .Doc.References}}
            <div class="entry">
                <div class="heading"><span>{{.Name}}</span></div>
                <div class="sub">{{.Position}}{{if .Company}} &middot; {{.Company}}{{end}}</div>
                <div class="sub">{{.Email}}{{if .Phone}} &middot; {{.Phone}}{{end}}</div>
            </div>
            {{end}}
        </section>
        {{end}}

        {{range .Doc.CustomSections}}
        <section>
            <h2>{{.Title}}</h2>
            <p>{{.Content}}</p>
        </section>
        {{end}}
    </div>
</body>
</html>
`

var cvTemplate = template.Must(
	template.New("cv").Funcs(template.FuncMap{"join": strings.Join}).Parse(cvPageTemplate),
)

type cvTemplateData struct {
	Doc        cv.Document
	TemplateID string
	Accent     string
	FontFamily string
	FontSizePt int
	Contacts   []string
}

// RenderHTML 把结构化简历渲染成待打印的 HTML 页面。
func RenderHTML(doc cv.Document) (string, error) {
	data := cvTemplateData{
		Doc:        doc,
		TemplateID: doc.Template,
		Accent:     doc.Settings.PrimaryColor,
		FontFamily: doc.Settings.FontFamily,
		FontSizePt: fontSizePt(doc.Settings.FontSize),
		Contacts:   contactLine(doc.PersonalInfo),
	}
	if data.Accent == "" {
		data.Accent = templateAccent(doc.Template)
	}
	if data.FontFamily == "" {
		data.FontFamily = "Inter"
	}

	var buf bytes.Buffer
	if err := cvTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render cv template: %w", err)
	}
	return buf.String(), nil
}

func fontSizePt(size string) int {
	switch size {
	case "small":
		return 9
	case "large":
		return 12
	default:
		return 10
	}
}

// templateAccent 在文档没有自定义主色时取模板目录的首个颜色。
func templateAccent(templateID string) string {
	for _, t := range cv.Templates() {
		if t.ID == templateID && len(t.Colors) > 0 {
			return t.Colors[0]
		}
	}
	return "#2563eb"
}

func contactLine(info cv.PersonalInfo) []string {
	var parts []string
	for _, v := range []string{
		info.Email,
		info.Phone,
		locationLine(info),
		info.LinkedIn,
		info.Website,
	} {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func locationLine(info cv.PersonalInfo) string {
	var parts []string
	for _, v := range []string{info.Address, info.City, info.Country, info.PostalCode} {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
