package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates tmplCache
	tmplInit  sync.Once
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: tmplCacheEntry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is the common context available to all email templates.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	EmailService interface {
		SendMessages(messages ...*EmailMessage)
	}
)

// loadTemplates walks templates/email and caches every .txt and .html
// template found there, keyed by base name.
func loadTemplates() {
	templates = make(tmplCache)

	root := filepath.Join("templates", "email")
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil //nolint:nilerr // missing template dir is not fatal
		}
		ext := filepath.Ext(path)
		name := strings.TrimSuffix(filepath.Base(path), ext)
		entry, ok := templates[name]
		if !ok {
			entry = make(tmplCacheEntry, 2)
			templates[name] = entry
		}
		switch ext {
		case ".txt":
			if t, tErr := texttmpl.ParseFiles(path); tErr == nil {
				entry[ext] = t
			}
		case ".html":
			if t, tErr := htmltmpl.ParseFiles(path); tErr == nil {
				entry[ext] = t
			}
		}
		return nil
	})
}

func (msg *EmailMessage) HasRecipients() bool {
	return len(msg.To) > 0 || len(msg.Cc) > 0 || len(msg.Bcc) > 0
}

func (msg *EmailMessage) HasContent() bool {
	return msg.BodyStr != "" || msg.TextContent != "" || msg.HTMLContent != ""
}

// Render resolves the message's template (if any) into TextContent/HTMLContent.
func (msg *EmailMessage) Render() error {
	if msg.BodyStr != "" {
		msg.TextContent = msg.BodyStr
	}
	if msg.TemplateName == "" {
		return nil
	}
	tmplInit.Do(loadTemplates)

	entry, ok := templates[msg.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not found", msg.TemplateName)
	}
	if t, ok := entry[".txt"].(*texttmpl.Template); ok {
		var buf bytes.Buffer
		if err := t.Execute(&buf, msg.TemplateData); err != nil {
			return errors.Wrap(err, "executing text template")
		}
		msg.TextContent = buf.String()
	}
	if t, ok := entry[".html"].(*htmltmpl.Template); ok {
		var buf bytes.Buffer
		if err := t.Execute(&buf, msg.TemplateData); err != nil {
			return errors.Wrap(err, "executing html template")
		}
		msg.HTMLContent = buf.String()
	}
	return nil
}
