// Package report renders the optional actions.json / actions.html
// artifacts the job controller writes per run. The HTML styling is
// grounded on the teacher's reportCSS block (reporting.go): same custom
// property palette and badge/table layout, retargeted from a flat file
// list to the per-tree action model this engine plans.
package report

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jonschz/frontdown/internal/model"
)

// TreeActions is one source tree's serializable action set, matching the
// actions.json schema from §6.
type TreeActions struct {
	Name       string         `json:"name"`
	Source     string         `json:"source"`
	TargetDir  string         `json:"targetDir"`
	CompareDir string         `json:"compareDir"`
	Actions    []ActionRecord `json:"actions"`
}

// ActionRecord is the wire form of model.Action: modTime serialized as an
// ISO-8601 instant, matching §6's actions.json schema exactly.
type ActionRecord struct {
	Type     string    `json:"type"`
	IsDir    bool      `json:"isDir"`
	RelPath  string    `json:"relPath"`
	ModTime  time.Time `json:"modTime"`
	HTMLFlag string    `json:"htmlFlag,omitempty"`
}

// ToRecords converts a plan's Action slice into its serializable form.
func ToRecords(actions []model.Action) []ActionRecord {
	out := make([]ActionRecord, len(actions))
	for i, a := range actions {
		out[i] = ActionRecord{
			Type:     a.Type.String(),
			IsDir:    a.IsDir,
			RelPath:  a.RelPath,
			ModTime:  a.ModTime,
			HTMLFlag: string(a.HTMLFlag),
		}
	}
	return out
}

// WriteJSON writes the actions.json array of per-tree objects.
func WriteJSON(path string, trees []TreeActions) error {
	data, err := json.MarshalIndent(trees, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal actions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Totals is the run-level tally rendered at the top of actions.html.
type Totals struct {
	RunID        string
	Started      time.Time
	Successful   bool
	FilesCopied  int64
	BytesCopied  int64
	FilesLinked  int64
	BytesLinked  int64
	FilesDeleted int64
	BytesDeleted int64
	BackupErrors int64
}

// WriteHTML renders a self-contained actions.html document: a summary
// badge row followed by one table per tree, in the teacher's card/badge
// visual language.
func WriteHTML(path string, totals Totals, trees []TreeActions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Backup report %s</title>\n%s</head>\n<body>\n<div class=\"container\">\n",
		html.EscapeString(totals.RunID), reportCSS)

	fmt.Fprintf(f, "<h1>Backup report</h1>\n")
	status := "FAILED"
	badgeClass := "badge-error"
	if totals.Successful {
		status = "OK"
		badgeClass = "badge-copied"
	}
	fmt.Fprintf(f, "<div class=\"summary-badges\"><div class=\"badge-row\">\n")
	writeBadge(f, "badge-total", "Run", totals.RunID)
	writeBadge(f, badgeClass, "Status", status)
	writeBadge(f, "badge-copied", "Copied", fmt.Sprintf("%d files, %s", totals.FilesCopied, humanize.Bytes(uint64(totals.BytesCopied))))
	writeBadge(f, "badge-data", "Hardlinked", fmt.Sprintf("%d files, %s", totals.FilesLinked, humanize.Bytes(uint64(totals.BytesLinked))))
	writeBadge(f, "badge-time", "Deleted", fmt.Sprintf("%d files, %s", totals.FilesDeleted, humanize.Bytes(uint64(totals.BytesDeleted))))
	if totals.BackupErrors > 0 {
		writeBadge(f, "badge-error", "Errors", fmt.Sprintf("%d", totals.BackupErrors))
	}
	fmt.Fprintf(f, "</div></div>\n")

	for _, tree := range trees {
		fmt.Fprintf(f, "<h2>%s</h2>\n<div class=\"table-container\"><table>\n", html.EscapeString(tree.Name))
		fmt.Fprintf(f, "<thead class=\"table-header\"><tr><th>Type</th><th>Path</th><th>Flag</th><th>Mod time</th></tr></thead>\n<tbody>\n")
		for _, a := range tree.Actions {
			fmt.Fprintf(f, "<tr><td><span class=\"status-badge status-%s\">%s</span></td><td class=\"file-path\">%s</td><td>%s</td><td>%s</td></tr>\n",
				statusClass(a.Type), html.EscapeString(a.Type), html.EscapeString(a.RelPath), html.EscapeString(a.HTMLFlag), a.ModTime.Format(time.RFC3339))
		}
		fmt.Fprintf(f, "</tbody></table></div>\n")
	}

	fmt.Fprintf(f, "</div>\n</body>\n</html>\n")
	return nil
}

func statusClass(actionType string) string {
	switch actionType {
	case "COPY":
		return "copied"
	case "HARDLINK":
		return "duplicate"
	case "DELETE":
		return "error"
	default:
		return "skipped"
	}
}

func writeBadge(f *os.File, class, label, value string) {
	fmt.Fprintf(f, "<div class=\"summary-badge %s\"><span class=\"badge-label\">%s</span><span class=\"badge-value\">%s</span></div>\n",
		class, html.EscapeString(label), html.EscapeString(value))
}

const reportCSS = `<style>
:root {
  --background: 0 0% 100%; --foreground: 222.2 84% 4.9%;
  --card: 0 0% 100%; --muted: 210 40% 96%; --muted-foreground: 215.4 16.3% 46.9%;
  --border: 214.3 31.8% 91.4%; --radius: 0.5rem;
}
* { box-sizing: border-box; }
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
  line-height: 1.5; color: hsl(var(--foreground)); background-color: hsl(var(--background)); margin: 0; padding: 20px; }
.container { max-width: 1200px; margin: 0 auto; }
h1 { font-size: 2.25rem; font-weight: 700; margin-bottom: 1rem; }
.table-container { border: 1px solid hsl(var(--border)); border-radius: var(--radius); overflow: hidden; background: hsl(var(--card)); margin-bottom: 2rem; }
table { width: 100%; border-collapse: collapse; }
.table-header { background: hsl(var(--muted)); }
th, td { text-align: left; padding: 0.6rem 0.75rem; border-bottom: 1px solid hsl(var(--border)); }
.file-path { max-width: 480px; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
.status-badge { display: inline-flex; padding: 0.2rem 0.5rem; border-radius: calc(var(--radius) - 2px); font-size: 0.75rem; font-weight: 500; }
.status-copied { background: hsl(142 76% 36% / 0.1); color: hsl(142 76% 36%); }
.status-duplicate { background: hsl(221 83% 53% / 0.1); color: hsl(221 83% 53%); }
.status-error { background: hsl(0 84.2% 60.2% / 0.1); color: hsl(0 84.2% 60.2%); }
.status-skipped { background: hsl(45 93% 47% / 0.1); color: hsl(45 93% 47%); }
.summary-badges { margin: 1rem 0 2rem; }
.badge-row { display: flex; justify-content: center; gap: 0.75rem; flex-wrap: wrap; }
.summary-badge { display: inline-flex; flex-direction: column; align-items: center; padding: 0.6rem 0.9rem; border-radius: var(--radius); min-width: 90px; text-align: center; border: 1px solid hsl(var(--border)); }
.badge-label { font-size: 0.75rem; opacity: 0.8; margin-bottom: 0.2rem; }
.badge-value { font-size: 1.05rem; font-weight: 700; }
.badge-total { background: hsl(210 40% 96%); }
.badge-data { background: hsl(221 83% 53% / 0.1); color: hsl(221 83% 53%); }
.badge-time { background: hsl(262 83% 58% / 0.1); color: hsl(262 83% 58%); }
.badge-copied { background: hsl(142 76% 36% / 0.1); color: hsl(142 76% 36%); }
.badge-error { background: hsl(0 84.2% 60.2% / 0.1); color: hsl(0 84.2% 60.2%); }
</style>
`
