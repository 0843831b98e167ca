package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Translations map[string]string

type Language struct {
	found bool
	tr    Translations
}

// TransPool loads <basePath>/<lang>.yaml on first use of a language.
type TransPool struct {
	basePath  string
	mu        sync.Mutex
	languages map[string]*Language
	log       *slog.Logger
}

func NewTransPool(basePath string, log *slog.Logger) *TransPool {
	if log == nil {
		log = slog.Default()
	}
	return &TransPool{
		basePath:  basePath,
		languages: make(map[string]*Language),
		log:       log,
	}
}

func NewLanguage(tr Translations) *Language {
	return &Language{
		found: tr != nil,
		tr:    tr,
	}
}

func (tp *TransPool) Get(lang string) *Language {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	l, ok := tp.languages[lang]
	if !ok {
		l = NewLanguage(tp.load(lang))
		tp.languages[lang] = l
	}
	return l
}

func (tp *TransPool) load(lang string) Translations {
	if tp.basePath == "" || lang == "" || filepath.Base(lang) != lang {
		return nil
	}
	path := filepath.Join(tp.basePath, lang+".yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			tp.log.Warn("reading translations", "path", path, "err", err)
		}
		return nil
	}
	var tr Translations
	if err := yaml.Unmarshal(b, &tr); err != nil {
		tp.log.Warn("parsing translations", "path", path, "err", err)
		return nil
	}
	return tr
}

func (l *Language) Lang(text string) string {
	if l == nil || !l.found {
		// Language was not found, return the string
		return text
	}
	res, ok := l.tr[text]
	if !ok {
		// Key was not found
		return text
	}
	return res
}
