package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/core"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Replay Report")
}

// htmlData contains all data needed for the HTML template.
type htmlData struct {
	Title         string
	GeneratedAt   string
	Report        *Report
	Runs          []htmlRun
	TotalDuration string
	PassRate      float64
}

type htmlRun struct {
	RunDetail
	StatusClass string
	DurationStr string
	Steps       []htmlStep
}

type htmlStep struct {
	StepDetail
	StatusClass string
	DurationStr string
	Screenshots []string
}

// GenerateHTML renders rep as a static page next to report.json.
func GenerateHTML(rep *Report, cfg HTMLConfig) (string, error) {
	if cfg.Title == "" {
		cfg.Title = "Replay Report"
	}
	if cfg.OutputPath == "" {
		return "", fmt.Errorf("html output path is required")
	}

	out, err := renderHTML(buildHTMLData(rep, cfg))
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	if err := ensureDir(filepath.Dir(cfg.OutputPath)); err != nil {
		return "", err
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(out), 0o644); err != nil {
		return "", err
	}
	return cfg.OutputPath, nil
}

func buildHTMLData(rep *Report, cfg HTMLConfig) htmlData {
	data := htmlData{
		Title:         cfg.Title,
		GeneratedAt:   rep.GeneratedAt.Local().Format("2006-01-02 15:04:05"),
		Report:        rep,
		TotalDuration: formatDuration(rep.Summary.TotalDurationMs),
	}
	if rep.Summary.Total > 0 {
		data.PassRate = float64(rep.Summary.Passed) / float64(rep.Summary.Total) * 100
	}

	for _, run := range rep.Runs {
		hr := htmlRun{
			RunDetail:   run,
			StatusClass: run.Status.String(),
			DurationStr: formatDuration(run.DurationMs),
		}
		for _, s := range run.Steps {
			hs := htmlStep{
				StepDetail:  s,
				StatusClass: s.Status.String(),
				DurationStr: formatDuration(s.DurationMs),
			}
			for _, att := range s.Attachments {
				if att.Name != core.AttachmentScreenshot {
					continue
				}
				src := att.Path
				if cfg.EmbedAssets {
					if embedded := loadAsBase64(att.Path); embedded != "" {
						src = embedded
					}
				}
				hs.Screenshots = append(hs.Screenshots, src)
			}
			hr.Steps = append(hr.Steps, hs)
		}
		data.Runs = append(data.Runs, hr)
	}
	return data
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path) //#nosec G304 -- screenshot written by this run
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data htmlData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		"url": func(s string) template.URL { return template.URL(s) }, //#nosec G203 -- local file or data URI
	}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --skipped: #eab308;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .header-title-main { font-size: 20px; font-weight: 600; }
        .header-title-sub { color: var(--text-muted); margin-left: 12px; }
        .legend { display: flex; gap: 16px; margin-top: 8px; color: var(--text-muted); }
        main { padding: 16px 24px; }
        details.run { border: 1px solid var(--border-color); border-radius: 6px; margin-bottom: 12px; }
        details.run > summary { padding: 10px 14px; cursor: pointer; display: flex; gap: 12px; align-items: center; }
        .status-dot { width: 10px; height: 10px; border-radius: 50%; display: inline-block; }
        .passed .status-dot, .status-dot.passed { background: var(--passed); }
        .failed .status-dot, .status-dot.failed { background: var(--failed); }
        .skipped .status-dot, .status-dot.skipped { background: var(--skipped); }
        .run-meta { color: var(--text-muted); margin-left: auto; }
        .run-error { color: var(--failed); padding: 0 14px 10px; }
        table { width: 100%; border-collapse: collapse; }
        td, th { text-align: left; padding: 6px 14px; border-top: 1px solid var(--border-color); vertical-align: top; }
        .step-error { color: var(--failed); font-family: monospace; white-space: pre-wrap; }
        img.shot { max-width: 320px; border: 1px solid var(--border-color); margin-top: 6px; }
    </style>
</head>
<body>
    <div class="header">
        <span class="header-title-main">{{.Title}}</span>
        <span class="header-title-sub">{{.GeneratedAt}}</span>
        <div class="legend">
            <span>{{.Report.Summary.Total}} runs</span>
            <span>{{.Report.Summary.Passed}} passed</span>
            <span>{{.Report.Summary.Failed}} failed</span>
            {{if .Report.Summary.Skipped}}<span>{{.Report.Summary.Skipped}} skipped</span>{{end}}
            <span>{{printf "%.0f" .PassRate}}% pass rate</span>
            <span>{{.TotalDuration}}</span>
        </div>
    </div>
    <main>
        {{range .Runs}}
        <details class="run {{.StatusClass}}"{{if eq .StatusClass "failed"}} open{{end}}>
            <summary>
                <span class="status-dot"></span>
                <span>{{.TestCaseName}}{{if .Iteration}} #{{.Iteration}}{{end}}</span>
                <span class="run-meta">{{.Platform}} · {{.PassedSteps}}/{{.TotalSteps}} steps · {{.DurationStr}}</span>
            </summary>
            {{if .Error}}<div class="run-error">{{.Error}}</div>{{end}}
            <table>
                <tr><th>#</th><th>Action</th><th>Target</th><th>Duration</th></tr>
                {{range .Steps}}
                <tr class="{{.StatusClass}}">
                    <td><span class="status-dot"></span> {{inc .Index}}</td>
                    <td>{{.Kind}}</td>
                    <td>
                        {{.Description}}
                        {{if .Element}}<div class="run-meta">{{.Element.Locator}}{{if .Element.Rung}} ({{.Element.Rung}}){{end}}</div>{{end}}
                        {{if .Error}}<div class="step-error">{{.Error}}</div>{{end}}
                        {{range .Screenshots}}<div><img class="shot" src="{{url .}}" alt="screenshot"></div>{{end}}
                    </td>
                    <td>{{.DurationStr}}</td>
                </tr>
                {{end}}
            </table>
        </details>
        {{end}}
    </main>
</body>
</html>
`
