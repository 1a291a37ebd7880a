package form

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mbolis/pozo-survey/catalog"
	"github.com/mbolis/pozo-survey/model"
)

var ErrIndexOutOfRange = errors.New("connection index out of range")

// CatalogMode tells whether classification fields must hold a catalog option.
type CatalogMode string

const (
	// Advisory accepts any string, as the field catalog only feeds the selectors.
	Advisory CatalogMode = "advisory"
	// Strict rejects values that are neither empty nor an option of the field's catalog.
	Strict CatalogMode = "strict"
)

func ParseCatalogMode(s string) (CatalogMode, error) {
	switch mode := CatalogMode(s); mode {
	case Advisory, Strict:
		return mode, nil
	}
	return "", fmt.Errorf("unknown catalog mode %q", s)
}

// Controller owns one in-progress survey and its pending photos.
// It is the only thing that mutates them.
type Controller struct {
	mu          sync.RWMutex
	mode        CatalogMode
	encuesta    model.Encuesta
	attachments []model.Attachment
}

func NewController(mode CatalogMode) *Controller {
	if mode == "" {
		mode = Advisory
	}
	return &Controller{mode: mode}
}

func (c *Controller) SetField(name, value string) error {
	if c.mode == Strict {
		if err := catalog.Check(name, value); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encuesta.SetField(name, value)
}

func (c *Controller) Field(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encuesta.Field(name)
}

// AddConnection appends an empty connection and returns its index.
func (c *Controller) AddConnection() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encuesta.ListaConexiones = append(c.encuesta.ListaConexiones, model.Conexion{})
	return len(c.encuesta.ListaConexiones) - 1
}

// RemoveConnection deletes the connection at index, keeping the order of the
// others. An index outside the list leaves the survey untouched.
func (c *Controller) RemoveConnection(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.encuesta.ListaConexiones
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(list))
	}
	c.encuesta.ListaConexiones = append(list[:index:index], list[index+1:]...)
	return nil
}

func (c *Controller) SetConnectionField(index int, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.encuesta.ListaConexiones
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(list))
	}
	return list[index].SetField(name, value)
}

// ReplaceAttachments discards the current photos and installs list in full.
func (c *Controller) ReplaceAttachments(list []model.Attachment) {
	list = model.CloneAttachments(list)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachments = list
}

func (c *Controller) Survey() model.Encuesta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encuesta.Clone()
}

func (c *Controller) Attachments() []model.Attachment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.CloneAttachments(c.attachments)
}

// Snapshot copies the survey and photos as they are right now. Later edits do
// not reach the copy.
func (c *Controller) Snapshot() (model.Encuesta, []model.Attachment) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encuesta.Clone(), model.CloneAttachments(c.attachments)
}
