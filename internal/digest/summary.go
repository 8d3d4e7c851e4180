package digest

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"weekly/internal/models"
	"weekly/internal/timeutil"
)

const summaryTemplate = `Weekly meeting digest
Generated {{.Generated}}
{{if not .Entries}}
No upcoming meetings.
{{end}}{{range $i, $e := .Entries}}
{{inc $i}}. {{$e.Meeting.Title}}
   When: {{when $e.Meeting}}
{{- with $e.Meeting.Location}}
   Where: {{.}}{{end}}
{{- with $e.Meeting.EventLink}}
   Link: {{.}}{{end}}
   Attendees: {{attendees $e.Meeting.Attendees}}
{{- if $e.MailError}}
   Mail: unavailable ({{$e.MailError}})
{{- else if $e.Mail}}
   Mail: {{$e.Mail.Count}} related message(s)
{{- range $e.Mail.Items}}
     - {{.Subject}} ({{.From}}, {{.Date}})
{{- end}}{{end}}
{{- with $e.CRM}}{{if .Found}}
   CRM:{{with .Contact}} contact {{props . "firstname" "lastname" "email" "lifecyclestage"}}{{end}}
{{- range .Companies}}
     - company {{props . "name" "domain" "industry"}}{{end}}
{{- range .Deals}}
     - deal {{props . "dealname" "dealstage" "amount"}}{{end}}
{{- else}}
   CRM: {{.Reason}}{{end}}{{end}}
{{end}}`

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"inc":       func(i int) int { return i + 1 },
	"when":      when,
	"attendees": attendeeList,
	"props":     props,
}).Parse(summaryTemplate))

// Render produces the plain-text digest published to the document.
func Render(generated time.Time, entries []Entry) (string, error) {
	var sb strings.Builder
	data := struct {
		Generated string
		Entries   []Entry
	}{
		Generated: generated.Format(timeutil.DateLayout),
		Entries:   entries,
	}
	if err := summaryTmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()) + "\n", nil
}

func when(m models.Meeting) string {
	var parts []string
	if m.Day != nil {
		parts = append(parts, *m.Day)
	}
	if m.StartLocal != nil {
		parts = append(parts, *m.StartLocal)
	}
	if m.EndLocal != nil {
		parts = append(parts, "to "+*m.EndLocal)
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " ")
}

func attendeeList(attendees []models.Attendee) string {
	if len(attendees) == 0 {
		return "none"
	}
	names := make([]string, 0, len(attendees))
	for _, a := range attendees {
		switch {
		case a.Name != nil && a.Email != nil:
			names = append(names, fmt.Sprintf("%s <%s>", *a.Name, *a.Email))
		case a.Email != nil:
			names = append(names, *a.Email)
		case a.Name != nil:
			names = append(names, *a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// props renders the named non-empty properties in order, falling back to all
// properties sorted by key when none of them are set.
func props(p models.Properties, keys ...string) string {
	var parts []string
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil && fmt.Sprint(v) != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	if len(parts) == 0 {
		all := make([]string, 0, len(p))
		for k, v := range p {
			if v != nil {
				all = append(all, fmt.Sprintf("%s=%v", k, v))
			}
		}
		sort.Strings(all)
		parts = all
	}
	return strings.Join(parts, " ")
}
