package vfs

// Content is a stored file in its original representation: Text or Bytes.
type Content interface {
	// Data returns the raw bytes. Text is returned as its UTF-8 encoding.
	Data() []byte
	Len() int
	content()
}

// Text is a file decoded as UTF-8.
type Text string

func (t Text) Data() []byte { return []byte(t) }
func (t Text) Len() int     { return len(t) }
func (Text) content()       {}

// Bytes is an opaque binary file.
type Bytes []byte

func (b Bytes) Data() []byte { return b }
func (b Bytes) Len() int     { return len(b) }
func (Bytes) content()       {}

type kind uint8

const (
	kindBytes kind = iota
	kindText
)

func kindOf(c Content) kind {
	if _, ok := c.(Text); ok {
		return kindText
	}
	return kindBytes
}
