package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/coregx/notify/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Site describes the public site the emails link back to.
type Site struct {
	Name    string
	BaseURL string
}

// Rendered is a fully rendered email without its recipient.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer turns digests and account events into emails.
type Renderer struct {
	site Site
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(site Site) (*Renderer, error) {
	site.BaseURL = strings.TrimSuffix(site.BaseURL, "/")
	r := &Renderer{site: site}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"billURL":      func(slug string) string { return r.link("legislation", slug) },
		"personURL":    func(slug string) string { return r.link("person", slug) },
		"committeeURL": func(slug string) string { return r.link("committee", slug) },
		"eventURL":     func(slug string) string { return r.link("event", slug) },
		"searchURL":    func(p model.SearchParams) string { return site.BaseURL + p.SearchPath() },
		"manageURL":    func() string { return site.BaseURL + "/account/subscriptions/" },
		"date":         func(t *time.Time) string { return t.Format("Jan 2, 2006") },
		"datetime":     func(t *time.Time) string { return t.Format("Jan 2, 2006 at 3:04 PM") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

func (r *Renderer) link(section, slug string) string {
	return r.site.BaseURL + "/" + section + "/" + url.PathEscape(slug) + "/"
}

// DigestSubject returns the subject line of digest emails.
func (r *Renderer) DigestSubject() string {
	return r.site.Name + " Updates!"
}

// ActivationSubject returns the subject line of activation emails.
func (r *Renderer) ActivationSubject() string {
	return "Activate your account with " + r.site.Name
}

// Digest renders a digest email.
func (r *Renderer) Digest(d *model.Digest) (Rendered, error) {
	if d == nil {
		return Rendered{}, fmt.Errorf("digest is nil")
	}
	subject := r.DigestSubject()
	return r.render("digest.html", subject, map[string]interface{}{
		"Subject": subject,
		"Site":    r.site,
		"Digest":  d,
	})
}

// Activation renders the account activation email.
func (r *Renderer) Activation(user model.User, key string) (Rendered, error) {
	subject := r.ActivationSubject()
	return r.render("activation.html", subject, map[string]interface{}{
		"Subject":       subject,
		"Site":          r.site,
		"User":          user,
		"ActivationURL": r.site.BaseURL + "/activation/" + url.PathEscape(key) + "/",
	})
}

func (r *Renderer) render(name, subject string, data interface{}) (Rendered, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	text, err := PlainText(buf.String())
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, HTML: buf.String(), Text: text}, nil
}

// PlainText derives the text part of an email from its HTML: block
// elements become lines, links keep their target in parentheses.
func PlainText(htmlBody string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("head, script, style").Remove()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href != "" && strings.TrimSpace(s.Text()) != href {
			s.AppendHtml(" (" + template.HTMLEscapeString(href) + ")")
		}
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, h1, h2, h3, div, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	blank := true
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
