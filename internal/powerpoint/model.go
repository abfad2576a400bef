// Package powerpoint is a small presentation object model persisted as
// Office Open XML, plus the MCP tools that drive it.
package powerpoint

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotOpen  = errors.New("PowerPoint is not open")
	ErrNoSlides = errors.New("no slides available")
	ErrNoPath   = errors.New("presentation has never been saved")
)

// Slide size in points (16:9, 13.333in x 7.5in).
const (
	SlideWidth  = 960
	SlideHeight = 540
)

// Shape is a rectangle with optional centered text. Geometry is in points.
type Shape struct {
	ID     int
	Name   string
	X, Y   float64
	Width  float64
	Height float64
	Text   string
}

// Slide holds shapes in z-order.
type Slide struct {
	Shapes []Shape
	nextID int
}

func (s *Slide) addShape(sh Shape) Shape {
	// id 1 is the slide's group shape
	if s.nextID < 2 {
		s.nextID = 2
	}
	sh.ID = s.nextID
	s.nextID++
	if sh.Name == "" {
		sh.Name = fmt.Sprintf("Rectangle %d", sh.ID-1)
	}
	s.Shapes = append(s.Shapes, sh)
	return sh
}

// Presentation is an ordered list of slides.
type Presentation struct {
	Slides []*Slide
	Path   string
}

// NewPresentation returns a presentation with one blank slide.
func NewPresentation() *Presentation {
	return &Presentation{Slides: []*Slide{{}}}
}

// Encode renders the presentation as a .pptx archive.
func (p *Presentation) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writePackage(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Writer persists an encoded presentation and returns the final path.
type Writer func(path string, data []byte) (string, error)

// Application tracks open presentations. At most one is active; opening a
// new one closes the previous.
type Application struct {
	mu      sync.Mutex
	open    []*Presentation
	running bool
	write   Writer
}

// NewApplication creates an application that saves through write.
func NewApplication(write Writer) *Application {
	return &Application{write: write}
}

// Open closes the active presentation, starts a new blank one and returns the
// number of open presentations.
func (a *Application) Open() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.open); n > 0 {
		a.open = a.open[:n-1]
	}
	a.running = true
	a.open = append(a.open, NewPresentation())
	return len(a.open)
}

// AddRectangle draws on the last slide of the active presentation.
func (a *Application) AddRectangle(x, y, width, height float64, text string) (Shape, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.activeLocked()
	if err != nil {
		return Shape{}, err
	}
	if len(p.Slides) == 0 {
		return Shape{}, ErrNoSlides
	}
	slide := p.Slides[len(p.Slides)-1]
	return slide.addShape(Shape{X: x, Y: y, Width: width, Height: height, Text: text}), nil
}

// SaveAs writes the active presentation to path and remembers it.
func (a *Application) SaveAs(path string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.activeLocked()
	if err != nil {
		return "", err
	}
	return a.saveLocked(p, path)
}

// Close optionally saves the active presentation and quits. An empty
// filename saves to the last saved path.
func (a *Application) Close(save bool, filename string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return "", ErrNotOpen
	}

	var saved string
	if p, err := a.activeLocked(); err == nil && save {
		path := filename
		if path == "" {
			path = p.Path
		}
		if path == "" {
			return "", ErrNoPath
		}
		if saved, err = a.saveLocked(p, path); err != nil {
			return "", err
		}
	}

	a.open = nil
	a.running = false
	return saved, nil
}

// Active returns the active presentation, if any.
func (a *Application) Active() (*Presentation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.activeLocked()
	return p, err == nil
}

func (a *Application) activeLocked() (*Presentation, error) {
	if !a.running || len(a.open) == 0 {
		return nil, ErrNotOpen
	}
	return a.open[len(a.open)-1], nil
}

func (a *Application) saveLocked(p *Presentation, path string) (string, error) {
	data, err := p.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode presentation: %w", err)
	}
	final, err := a.write(path, data)
	if err != nil {
		return "", err
	}
	p.Path = final
	return final, nil
}
