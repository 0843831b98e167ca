package main

import (
	"encoding/json"
	"net/http"
)

// Page collects the values of one response and renders them as JSON.
type Page struct {
	td TemplateData
	ln *Language
}

type TemplateData map[string]interface{}

func NewPage(sc *SiteConfig, ln *Language) *Page {
	return &Page{
		td: NewTemplateData(sc),
		ln: ln,
	}
}

func NewTemplateData(sc *SiteConfig) TemplateData {
	td := make(TemplateData)
	td.Set("Title", sc.Title)
	td.Set("Description", sc.Description)
	td.Set("Language", sc.Language)
	return td
}

func (p *Page) Lang(text string) string {
	return p.ln.Lang(text)
}

func (p *Page) render(w http.ResponseWriter, code int) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(p.td)
}

func (td TemplateData) Set(name string, value interface{}) {
	td[name] = value
}

func (p *Page) Set(name string, value interface{}) {
	p.td.Set(name, value)
}
