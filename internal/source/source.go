package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Source is an ordered list of input images. Every page is one batch item.
type Source interface {
	PageCount() int
	// Name is the display name of a page, used for artifact naming.
	Name(index int) string
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

// FitzPDFSource renders PDF pages through MuPDF.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	base string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &FitzPDFSource{doc: doc, path: path, base: base}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) Name(index int) string {
	return fmt.Sprintf("%s_p%03d", f.base, index+1)
}

func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	if index < 0 || index >= f.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range", index)
	}
	// отдельный документ на вызов: декодирование идет из фоновой горутины
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

// Open picks the source implementation for path: PDF file, image file or a
// directory of images.
func Open(path string) (Source, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return NewFitzPDFSource(path)
	}
	return NewImageSource(path)
}

// Multi chains several sources into one batch, in order.
type Multi struct {
	parts []Source
}

func NewMulti(parts ...Source) *Multi {
	return &Multi{parts: parts}
}

func (m *Multi) locate(index int) (Source, int) {
	for _, p := range m.parts {
		n := p.PageCount()
		if index < n {
			return p, index
		}
		index -= n
	}
	return nil, -1
}

func (m *Multi) PageCount() int {
	n := 0
	for _, p := range m.parts {
		n += p.PageCount()
	}
	return n
}

func (m *Multi) Name(index int) string {
	p, i := m.locate(index)
	if p == nil {
		return fmt.Sprintf("item_%03d", index+1)
	}
	return p.Name(i)
}

func (m *Multi) RenderPage(index int, dpi int) (image.Image, error) {
	p, i := m.locate(index)
	if p == nil {
		return nil, fmt.Errorf("item %d out of range", index)
	}
	return p.RenderPage(i, dpi)
}

func (m *Multi) Close() error {
	var first error
	for _, p := range m.parts {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Unavailable stands in for an input that could not be opened. It keeps the
// item in the batch; RenderPage reports the open error.
type Unavailable struct {
	name string
	err  error
}

func NewUnavailable(name string, err error) *Unavailable {
	return &Unavailable{name: name, err: err}
}

func (u *Unavailable) PageCount() int        { return 1 }
func (u *Unavailable) Name(index int) string { return u.name }
func (u *Unavailable) Close() error          { return nil }

func (u *Unavailable) RenderPage(index int, dpi int) (image.Image, error) {
	return nil, u.err
}
