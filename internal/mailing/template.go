// Package mailing renders and sends the templated notification emails the
// Email Worker publishes on survey lifecycle events (§4.5).
package mailing

import (
	"fmt"
	"html"
	"sync"

	"github.com/osteele/liquid"
)

// Rendered holds the three parts of a notification email, each rendered
// from the same variable set with §4.5 step 3's differential escaping:
// subject and text are never HTML-escaped, html is.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Template is a campaign's per-event-type notification template (§1
// "retry/e-mail template ids"): one Liquid source per body part.
type Template struct {
	ID      string
	Subject string
	HTML    string
	Text    string
}

// TemplateService renders Liquid templates against an event payload's
// variables, caching parsed templates by template id + part.
type TemplateService struct {
	plain *liquid.Engine
	html  *liquid.Engine
	cache sync.Map // map[string]*liquid.Template
}

// NewTemplateService builds a TemplateService with two engines: one that
// renders values as-is (subject, text) and one that HTML-escapes them
// (html body), per §4.5 step 3.
func NewTemplateService() *TemplateService {
	return &TemplateService{
		plain: liquid.NewEngine(),
		html:  newEscapingEngine(),
	}
}

// newEscapingEngine returns the engine used for the html part. It is a plain
// liquid engine; the escaping happens in Render, which passes the html part
// a copy of vars with every string HTML-escaped by escapeStrings.
func newEscapingEngine() *liquid.Engine {
	return liquid.NewEngine()
}

// Render produces the subject/html/text bodies for templateID against vars.
// vars is the flattened event payload (§4.4 EventPayload fields) plus any
// campaign-level bindings (contact name, campaign title) the caller adds.
func (ts *TemplateService) Render(tpl Template, vars map[string]interface{}) (Rendered, error) {
	subject, err := ts.renderPart(ts.plain, tpl.ID+":subject", tpl.Subject, vars)
	if err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}

	text, err := ts.renderPart(ts.plain, tpl.ID+":text", tpl.Text, vars)
	if err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}

	htmlOut, err := ts.renderPart(ts.html, tpl.ID+":html", tpl.HTML, escapeStrings(vars))
	if err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}

	return Rendered{Subject: subject, HTML: htmlOut, Text: text}, nil
}

func (ts *TemplateService) renderPart(engine *liquid.Engine, cacheKey, src string, vars map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := ts.cache.Load(cacheKey); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := engine.ParseString(src)
		if err != nil {
			return "", fmt.Errorf("parse: %w", err)
		}
		ts.cache.Store(cacheKey, parsed)
		tpl = parsed
	}
	return tpl.RenderString(vars)
}

// escapeStrings returns a shallow copy of vars with every string (and
// []string) value HTML-escaped, so the html engine's render pass never
// emits a binding verbatim (§4.5 step 3).
func escapeStrings(vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		switch val := v.(type) {
		case string:
			out[k] = html.EscapeString(val)
		case []string:
			escaped := make([]string, len(val))
			for i, s := range val {
				escaped[i] = html.EscapeString(s)
			}
			out[k] = escaped
		default:
			out[k] = v
		}
	}
	return out
}
