// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// debug is a small subsystem aware logger.  Every line is prefixed with a
// timestamp, the registered subsystem name and a severity tag.  A nil *Debug
// is a valid logger that discards everything, which lets library packages
// log unconditionally.
package debug

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/companyzero/ttk"
)

var (
	ErrNoSubystems        = errors.New("no subsystems specified")
	ErrDuplicateSubsystem = errors.New("duplicate subsystem")
)

// Subsystem identifiers shared by the pairing daemon and tools.
const (
	IDApp        = 0
	IDDispatcher = 1
	IDSession    = 2
	IDKX         = 3
	IDChannel    = 4
)

// Names returns the default subsystem names keyed by identifier.
func Names() map[int]string {
	return map[int]string{
		IDApp:        "[APP]",
		IDDispatcher: "[DSP]",
		IDSession:    "[SES]",
		IDKX:         "[KX ]",
		IDChannel:    "[CHN]",
	}
}

type Debug struct {
	sync.Mutex
	filename   string
	w          io.Writer // used when filename is empty
	format     string
	subsystems map[int]string
	debug      bool // debug enabled?
	trace      bool // trace enabled?
}

// Log formats and sanitizes the line.  Use it for anything that contains text
// supplied by a remote peer.
func (d *Debug) Log(id int, format string, args ...interface{}) {
	if d == nil {
		return
	}
	s := ttk.Unescape(fmt.Sprintf(format, args...))
	d.log(id, "[LOG] ", "%s", s)
}

func (d *Debug) Info(id int, format string, args ...interface{}) {
	d.log(id, "[INF] ", format, args...)
}

func (d *Debug) Warn(id int, format string, args ...interface{}) {
	d.log(id, "[WAR] ", format, args...)
}

func (d *Debug) Error(id int, format string, args ...interface{}) {
	d.log(id, "[ERR] ", format, args...)
}

func (d *Debug) Critical(id int, format string, args ...interface{}) {
	d.log(id, "[CRI] ", format, args...)
}

func (d *Debug) Dbg(id int, format string, args ...interface{}) {
	// let it race!
	if d == nil || !d.debug {
		return
	}

	d.log(id, "[DBG] ", format, args...)
}

func (d *Debug) T(id int, format string, args ...interface{}) {
	// let it race!
	if d == nil || !d.trace {
		return
	}

	d.log(id, "[TRC] ", format, args...)
}

func (d *Debug) log(id int, prefix string, format string, args ...interface{}) {
	if d == nil {
		return
	}

	d.Lock()
	defer d.Unlock()

	s, found := d.subsystems[id]
	if !found {
		s = "[UNK]"
	}
	t := time.Now().Format(d.format)

	if d.filename == "" {
		fmt.Fprintf(d.w, t+" "+s+prefix+format+"\n", args...)
		return
	}

	f, err := os.OpenFile(d.filename, os.O_CREATE|os.O_RDWR|os.O_APPEND,
		0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log error: %v", err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, t+" "+s+prefix+format+"\n", args...)
}

// New returns a logger that appends to filename.
func New(filename, format string) (*Debug, error) {
	// make sure we can open file
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	f.Close()

	d := Debug{
		subsystems: make(map[int]string),
		format:     format,
		filename:   filename,
	}

	return &d, nil
}

// NewWriter returns a logger that writes to w, typically os.Stderr.
func NewWriter(w io.Writer, format string) *Debug {
	return &Debug{
		subsystems: make(map[int]string),
		format:     format,
		w:          w,
	}
}

func (d *Debug) Register(id int, name string) error {
	d.Lock()
	defer d.Unlock()

	_, found := d.subsystems[id]
	if found {
		return ErrDuplicateSubsystem
	}
	d.subsystems[id] = name
	return nil
}

// RegisterAll registers every subsystem in names.
func (d *Debug) RegisterAll(names map[int]string) error {
	if len(names) == 0 {
		return ErrNoSubystems
	}
	for id, name := range names {
		if err := d.Register(id, name); err != nil {
			return fmt.Errorf("%v %v: %w", id, name, err)
		}
	}
	return nil
}

func (d *Debug) EnableDebug() {
	d.Lock()
	defer d.Unlock()

	d.debug = true
}

func (d *Debug) DisableDebug() {
	d.Lock()
	defer d.Unlock()

	d.debug = false
}

func (d *Debug) EnableTrace() {
	d.Lock()
	defer d.Unlock()

	d.trace = true
}

func (d *Debug) DisableTrace() {
	d.Lock()
	defer d.Unlock()

	d.trace = false
}
