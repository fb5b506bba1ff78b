package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/shule/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates tmplCache
	tmplInit  sync.Once

	errTemplatesNotParsed = errors.New("email templates not parsed")
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

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

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, m.TemplateName+".txt", data); err != nil {
		return err
	}
	m.TextContent = strings.TrimSpace(buff.String())
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, m.TemplateName+".gohtml", data); err != nil {
		return err
	}
	m.HTMLContent = strings.TrimSpace(buff.String())
	return nil
}

// Render fills TextContent and HTMLContent in.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName != "" && templates == nil {
		return errTemplatesNotParsed
	}
	data := ContextData{
		AppName:         conf.AppName,
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
	if err := m.renderText(data); err != nil {
		return errors.Wrap(err, "rendering text")
	}
	return errors.Wrap(m.renderHTML(data), "rendering html")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses the embedded email templates once.
// Every "<name>.txt" or "<name>.gohtml" template extends its "_base" counterpart.
func ParseEmailTemplates(conf *Config, logger Logger) {
	tmplInit.Do(func() {
		templates = make(tmplCache)
		strict := conf.Debug || conf.TestMode

		fps, err := fs.Glob(appfs.FS, path.Join(emailTemplatesDir, "*"))
		if err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
			return
		}

		for _, fp := range fps {
			fname := path.Base(fp)
			ext := path.Ext(fname)
			if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
				continue
			}
			name := strings.TrimSuffix(fname, ext)
			entry, ok := templates[name]
			if !ok {
				entry = make(tmplCacheEntry)
				templates[name] = entry
			}
			base := path.Join(emailTemplatesDir, "_base"+ext)

			if ext == ".txt" {
				tmpl, err := texttmpl.ParseFS(appfs.FS, base, fp)
				if err != nil {
					logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
					continue
				}
				if strict {
					tmpl = tmpl.Option("missingkey=error")
				}
				entry[ext] = tmpl
			} else {
				tmpl, err := htmltmpl.ParseFS(appfs.FS, base, fp)
				if err != nil {
					logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
					continue
				}
				if strict {
					tmpl = tmpl.Option("missingkey=error")
				}
				entry[ext] = tmpl
			}
		}
	})
}
