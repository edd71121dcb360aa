package render

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"image/color"
	"io"
	"io/fs"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/microcosm-cc/bluemonday"

	"drumkits/internal/kit"
	"drumkits/internal/pagination"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	RelatedCount       = 4
	metaDescriptionMax = 160
)

var pageNames = []string{"list", "search", "detail", "submit", "message"}

type Config struct {
	SiteName    string
	Images      kit.Images
	PerPage     int
	WindowLimit int
}

type Renderer struct {
	pages       map[string]*template.Template
	siteName    string
	images      kit.Images
	perPage     int
	windowLimit int
	strict      *bluemonday.Policy
	placeholder []byte
	now         func() time.Time
	intn        func(n int) int
}

func New(cfg Config) (*Renderer, error) {
	if cfg.SiteName == "" {
		cfg.SiteName = "DRUMKITS.SITE"
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = pagination.DefaultPerPage
	}
	if cfg.WindowLimit <= 0 {
		cfg.WindowLimit = pagination.DefaultWindow
	}
	r := &Renderer{
		pages:       make(map[string]*template.Template, len(pageNames)),
		siteName:    cfg.SiteName,
		images:      cfg.Images,
		perPage:     cfg.PerPage,
		windowLimit: cfg.WindowLimit,
		strict:      bluemonday.StrictPolicy(),
		now:         time.Now,
		intn:        rand.IntN,
	}
	for _, name := range pageNames {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	img, err := placeholderJPEG()
	if err != nil {
		return nil, fmt.Errorf("placeholder image: %w", err)
	}
	r.placeholder = img
	return r, nil
}

func (r *Renderer) PerPage() int {
	return r.perPage
}

// Static is the embedded stylesheet tree served under /static/.
func (r *Renderer) Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Placeholder is the JPEG served at the fallback image path.
func (r *Renderer) Placeholder() []byte {
	return r.placeholder
}

type Meta struct {
	SiteName    string
	Title       string
	Description string
	Query       string
	Year        int
}

// Card is a kit as shown in a grid.
type Card struct {
	Title       string
	Description string
	Href        string
	Image       string
	Fallback    string
}

type DetailKit struct {
	Card
	FileSize   string
	UpdateDate string
	Download   string
}

type listPage struct {
	Meta
	Cards []Card
	Pager *Pager
	Error string
}

type searchPage struct {
	Meta
	Total int
	Cards []Card
	Pager *Pager
	Error string
}

type detailPage struct {
	Meta
	Kit     DetailKit
	Related []Card
}

type submitPage struct {
	Meta
	Link    string
	Message string
	Error   string
	Success bool
}

type messagePage struct {
	Meta
	Heading string
	Message string
}

type ListInput struct {
	Kits   []kit.Kit
	Page   int
	Expand pagination.Expand
	Error  string
}

func (r *Renderer) List(w io.Writer, in ListInput) error {
	total := pagination.TotalPages(len(in.Kits), r.perPage)
	page := pagination.Clamp(in.Page, total)
	data := listPage{
		Meta:  r.meta("", "Browse free drum kits, sample packs and sound libraries."),
		Cards: r.cards(pagination.Slice(in.Kits, page, r.perPage)),
		Pager: NewPager("/", nil, page, total, r.windowLimit, in.Expand),
		Error: in.Error,
	}
	return r.execute(w, "list", data)
}

type SearchInput struct {
	Query   string
	Results []kit.Kit
	Page    int
	Expand  pagination.Expand
	Error   string
}

func (r *Renderer) Search(w io.Writer, in SearchInput) error {
	q := strings.TrimSpace(in.Query)
	total := pagination.TotalPages(len(in.Results), r.perPage)
	page := pagination.Clamp(in.Page, total)
	title := "Search"
	if q != "" {
		title = "Search: " + q
	}
	data := searchPage{
		Meta:  r.meta(title, ""),
		Total: len(in.Results),
		Cards: r.cards(pagination.Slice(in.Results, page, r.perPage)),
		Pager: NewPager("/search", url.Values{"q": {q}}, page, total, r.windowLimit, in.Expand),
		Error: in.Error,
	}
	data.Query = q
	return r.execute(w, "search", data)
}

// Detail renders one kit. Related kits are drawn from all on every call.
func (r *Renderer) Detail(w io.Writer, k kit.Kit, all []kit.Kit) error {
	dk := DetailKit{
		Card:       r.card(k),
		FileSize:   k.FileSize,
		UpdateDate: k.UpdateDate,
	}
	if u, ok := kit.SafeDownloadURL(k.Download); ok {
		dk.Download = u
	}
	data := detailPage{
		Meta:    r.meta(k.Title, r.metaDescription(k.Description)),
		Kit:     dk,
		Related: r.cards(r.related(k, all)),
	}
	return r.execute(w, "detail", data)
}

type SubmitInput struct {
	Link    string
	Message string
	Error   string
	Success bool
}

func (r *Renderer) Submit(w io.Writer, in SubmitInput) error {
	data := submitPage{
		Meta:    r.meta("Submit a kit", "Submit a drum kit download link for review."),
		Link:    in.Link,
		Message: in.Message,
		Error:   in.Error,
		Success: in.Success,
	}
	return r.execute(w, "submit", data)
}

func (r *Renderer) Message(w io.Writer, heading, message string) error {
	data := messagePage{
		Meta:    r.meta(heading, ""),
		Heading: heading,
		Message: message,
	}
	return r.execute(w, "message", data)
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func (r *Renderer) meta(title, description string) Meta {
	return Meta{
		SiteName:    r.siteName,
		Title:       title,
		Description: description,
		Year:        r.now().Year(),
	}
}

func (r *Renderer) card(k kit.Kit) Card {
	return Card{
		Title:       k.Title,
		Description: k.Description,
		Href:        kit.Path(k.Slug),
		Image:       r.images.URL(k.ID),
		Fallback:    r.images.FallbackPath(),
	}
}

func (r *Renderer) cards(kits []kit.Kit) []Card {
	out := make([]Card, 0, len(kits))
	for _, k := range kits {
		out = append(out, r.card(k))
	}
	return out
}

// metaDescription strips any markup and keeps a search-snippet sized prefix.
func (r *Renderer) metaDescription(desc string) string {
	text := html.UnescapeString(r.strict.Sanitize(desc))
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= metaDescriptionMax {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:metaDescriptionMax-1])) + "…"
}

// related picks up to RelatedCount other kits with a Fisher-Yates shuffle.
func (r *Renderer) related(current kit.Kit, all []kit.Kit) []kit.Kit {
	pool := make([]kit.Kit, 0, len(all))
	for _, k := range all {
		if k.Slug != current.Slug {
			pool = append(pool, k)
		}
	}
	for i := len(pool) - 1; i > 0; i-- {
		j := r.intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if len(pool) > RelatedCount {
		pool = pool[:RelatedCount]
	}
	return pool
}

func placeholderJPEG() ([]byte, error) {
	img := imaging.New(600, 600, color.NRGBA{R: 0x1f, G: 0x1f, B: 0x24, A: 0xff})
	mark := imaging.New(200, 200, color.NRGBA{R: 0x3a, G: 0x3a, B: 0x44, A: 0xff})
	img = imaging.PasteCenter(img, mark)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
